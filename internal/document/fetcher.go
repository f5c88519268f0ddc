package document

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/ppiankov/claimcheck/internal/logging"
	"github.com/ppiankov/claimcheck/internal/util"
	"github.com/ppiankov/claimcheck/internal/worker"
)

// ErrDisallowedByRobots is returned when robots.txt forbids fetching the page
var ErrDisallowedByRobots = errors.New("fetch disallowed by robots.txt")

// fetchSleepFunc is replaced in tests
var fetchSleepFunc = time.Sleep

const maxFetchAttempts = 3

// Fetcher fetches documents from URLs
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	robots     *util.RobotsChecker
	limiter    *worker.Limiter
}

// FetcherOptions configures a Fetcher
type FetcherOptions struct {
	Timeout       time.Duration
	UserAgent     string
	MaxBytes      int64
	RespectRobots bool
	HTTPProxy     string
	HTTPSProxy    string
	NoProxy       string
	Limiter       *worker.Limiter // Optional per-host throttle
}

// NewFetcher creates a new Fetcher with the given configuration
func NewFetcher(opts FetcherOptions) *Fetcher {
	client := util.NewHTTPClient(opts.Timeout, opts.HTTPProxy, opts.HTTPSProxy, opts.NoProxy)
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 3 {
			return goerr.New("stopped after 3 redirects")
		}
		return nil
	}

	f := &Fetcher{
		httpClient: client,
		userAgent:  opts.UserAgent,
		maxBytes:   opts.MaxBytes,
		limiter:    opts.Limiter,
	}
	if f.maxBytes <= 0 {
		f.maxBytes = 10 * 1024 * 1024
	}
	if opts.RespectRobots {
		f.robots = util.NewRobotsChecker(opts.UserAgent, client)
	}
	return f
}

// FetchResult contains the fetched body and metadata
type FetchResult struct {
	Body        []byte
	ContentType string
	StatusCode  int
	FinalURL    *url.URL
}

// FetchDocument fetches a URL and converts the body into a Document
func (f *Fetcher) FetchDocument(ctx context.Context, rawURL string) (*Document, error) {
	res, err := f.FetchWithRetry(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	mediaType, _, _ := mime.ParseMediaType(res.ContentType)
	switch {
	case mediaType == "text/html" || mediaType == "application/xhtml+xml":
		return FromHTML(rawURL, res.Body, res.FinalURL)
	case strings.HasPrefix(mediaType, "text/"):
		return FromBytes(rawURL, res.Body, ".txt")
	case mediaType == "" || mediaType == "application/octet-stream":
		return FromBytes(rawURL, res.Body, "")
	default:
		return nil, goerr.Wrap(ErrUnsupportedFormat, "unsupported content type",
			goerr.V("url", rawURL), goerr.V("content_type", res.ContentType))
	}
}

// FetchWithRetry fetches a URL, retrying transient failures (network errors, 429, 5xx)
func (f *Fetcher) FetchWithRetry(ctx context.Context, rawURL string) (*FetchResult, error) {
	if err := f.checkRobots(ctx, rawURL); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= maxFetchAttempts; attempt++ {
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx, rawURL); err != nil {
				return nil, goerr.Wrap(err, "rate limit wait", goerr.V("url", rawURL))
			}
		}

		res, err := f.Fetch(ctx, rawURL)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if !isTransient(err) || ctx.Err() != nil || attempt == maxFetchAttempts {
			break
		}

		backoff := time.Duration(attempt) * time.Second
		logging.From(ctx).Warn("document.fetch.retry", "url", rawURL, "attempt", attempt, "error", err, "backoff", backoff)
		fetchSleepFunc(backoff)
	}

	return nil, lastErr
}

// Fetch performs a single GET request
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "create request", goerr.V("url", rawURL))
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &statusError{err: goerr.Wrap(err, "fetch", goerr.V("url", rawURL)), transient: true}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &statusError{
			err:       goerr.New("unexpected status", goerr.V("url", rawURL), goerr.V("status", resp.StatusCode)),
			status:    resp.StatusCode,
			transient: resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, goerr.Wrap(err, "read body", goerr.V("url", rawURL))
	}

	return &FetchResult{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
		FinalURL:    resp.Request.URL,
	}, nil
}

func (f *Fetcher) checkRobots(ctx context.Context, rawURL string) error {
	if f.robots == nil {
		return nil
	}

	allowed, delay, err := f.robots.CanFetch(ctx, rawURL)
	if err != nil {
		return err
	}
	if !allowed {
		return goerr.Wrap(ErrDisallowedByRobots, "robots.txt check", goerr.V("url", rawURL))
	}
	if delay > 0 && f.limiter != nil {
		f.limiter.SetHostRate(worker.HostKey(rawURL), 1/delay.Seconds(), 1)
	}
	return nil
}

// statusError marks whether a fetch failure is worth retrying
type statusError struct {
	err       error
	status    int
	transient bool
}

func (e *statusError) Error() string { return e.err.Error() }
func (e *statusError) Unwrap() error { return e.err }

func isTransient(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.transient
}
