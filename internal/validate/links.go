package validate

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/ppiankov/claimcheck/internal/util"
)

const linkCheckMaxAttempts = 3

// linkSleepFunc is the sleep function used between retries (injectable for tests)
var linkSleepFunc = time.Sleep

// LinkChecker HEAD-checks cited source URLs concurrently
type LinkChecker struct {
	httpClient *http.Client
	maxWorkers int
	userAgent  string
}

// NewLinkChecker creates a link checker
func NewLinkChecker(timeout time.Duration, maxWorkers int, userAgent, httpProxy, httpsProxy, noProxy string) *LinkChecker {
	if maxWorkers <= 0 {
		maxWorkers = 8
	}

	client := util.NewHTTPClient(timeout, httpProxy, httpsProxy, noProxy)
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 3 {
			return goerr.New("stopped after 3 redirects", goerr.V("url", req.URL.String()))
		}
		return nil
	}

	return &LinkChecker{
		httpClient: client,
		maxWorkers: maxWorkers,
		userAgent:  userAgent,
	}
}

// Check returns one status per URL, in input order
func (c *LinkChecker) Check(ctx context.Context, urls []string) []model.LinkStatus {
	results := make([]model.LinkStatus, len(urls))
	if len(urls) == 0 {
		return results
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, c.maxWorkers)

	for i, u := range urls {
		wg.Add(1)
		go func(idx int, target string) {
			defer wg.Done()

			select {
			case <-ctx.Done():
				results[idx] = model.LinkStatus{URL: target, Error: "context cancelled"}
				return
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			results[idx] = c.checkWithRetry(ctx, target)
		}(i, u)
	}

	wg.Wait()
	return results
}

// checkSingle issues a HEAD request, falling back to GET when HEAD is refused
func (c *LinkChecker) checkSingle(ctx context.Context, target string) model.LinkStatus {
	result := model.LinkStatus{URL: target}

	resp, err := c.do(ctx, http.MethodHead, target)
	if err == nil && (resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented) {
		_ = resp.Body.Close()
		resp, err = c.do(ctx, http.MethodGet, target)
	}
	if err != nil {
		result.Error = fmt.Sprintf("request failed: %v", err)
		result.IsDead = true
		return result
	}
	defer func() { _ = resp.Body.Close() }()

	result.StatusCode = resp.StatusCode

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 400:
		result.Reachable = true
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		result.IsDead = true
	}

	if final := resp.Request.URL.String(); final != target {
		result.RedirectURL = final
	}

	return result
}

func (c *LinkChecker) do(ctx context.Context, method, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return c.httpClient.Do(req)
}

// checkWithRetry retries transient failures with exponential backoff
func (c *LinkChecker) checkWithRetry(ctx context.Context, target string) model.LinkStatus {
	var result model.LinkStatus
	for attempt := 0; attempt < linkCheckMaxAttempts; attempt++ {
		result = c.checkSingle(ctx, target)
		if !isRetryable(result) || ctx.Err() != nil {
			return result
		}
		if attempt < linkCheckMaxAttempts-1 {
			linkSleepFunc(time.Duration(1<<uint(attempt)) * time.Second)
		}
	}
	return result
}

// isRetryable returns true for results that indicate transient failures
func isRetryable(result model.LinkStatus) bool {
	if result.StatusCode >= 500 || result.StatusCode == http.StatusTooManyRequests {
		return true
	}
	if result.Error == "" {
		return false
	}
	s := strings.ToLower(result.Error)
	return strings.Contains(s, "timeout") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset")
}
