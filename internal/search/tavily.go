package search

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/ppiankov/claimcheck/internal/model"
)

// DefaultTavilyURL is the Tavily API endpoint
const DefaultTavilyURL = "https://api.tavily.com"

// TavilyRetriever implements Retriever with the Tavily search API
type TavilyRetriever struct {
	apiKey     string
	baseURL    string
	depth      string
	maxResults int
	httpClient *http.Client
}

type tavilyRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	SearchDepth   string `json:"search_depth"`
	MaxResults    int    `json:"max_results"`
	IncludeAnswer bool   `json:"include_answer"`
}

type tavilyResult struct {
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Content       string  `json:"content"`
	Score         float64 `json:"score"`
	PublishedDate string  `json:"published_date,omitempty"`
}

type tavilyResponse struct {
	Query   string         `json:"query"`
	Results []tavilyResult `json:"results"`
}

type tavilyError struct {
	Detail struct {
		Error string `json:"error"`
	} `json:"detail"`
}

// NewTavilyRetriever creates a Tavily retriever
func NewTavilyRetriever(cfg model.SearchConfig, client *http.Client) (*TavilyRetriever, error) {
	if cfg.APIKey == "" {
		return nil, goerr.New("Tavily API key is required (set TAVILY_API_KEY)")
	}
	if client == nil {
		client = http.DefaultClient
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultTavilyURL
	}
	depth := cfg.Depth
	if depth == "" {
		depth = "advanced"
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}

	return &TavilyRetriever{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		depth:      depth,
		maxResults: maxResults,
		httpClient: client,
	}, nil
}

// Name returns the backend name
func (t *TavilyRetriever) Name() string {
	return "tavily"
}

// Search posts the query to /search
func (t *TavilyRetriever) Search(ctx context.Context, query string) ([]model.SearchResult, error) {
	body, err := json.Marshal(tavilyRequest{
		APIKey:        t.apiKey,
		Query:         query,
		SearchDepth:   t.depth,
		MaxResults:    t.maxResults,
		IncludeAnswer: false,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "marshal tavily request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, goerr.Wrap(err, "create tavily request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, retrievalErr(t.Name(), query, 0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return nil, retrievalErr(t.Name(), query, resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr tavilyError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Detail.Error != "" {
			return nil, retrievalErr(t.Name(), query, resp.StatusCode, goerr.New(apiErr.Detail.Error))
		}
		return nil, retrievalErr(t.Name(), query, resp.StatusCode, goerr.New(strings.TrimSpace(string(respBody))))
	}

	var parsed tavilyResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, retrievalErr(t.Name(), query, resp.StatusCode, goerr.Wrap(err, "decode tavily response"))
	}

	results := make([]model.SearchResult, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		if r.URL == "" || strings.TrimSpace(r.Content) == "" {
			continue
		}
		results = append(results, model.SearchResult{
			Title:       r.Title,
			Snippet:     strings.TrimSpace(r.Content),
			URL:         r.URL,
			PublishedAt: parseDate(r.PublishedDate),
			Score:       r.Score,
		})
	}

	return results, nil
}

var dateLayouts = []string{
	time.RFC3339,
	time.RFC1123,
	time.RFC1123Z,
	"2006-01-02",
	"2006-01-02 15:04:05",
}

func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
