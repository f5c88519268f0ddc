package search

import (
	"net/http"

	"github.com/m-mizutani/goerr/v2"
	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/ppiankov/claimcheck/internal/worker"
)

// NewRetriever creates the retriever selected by cfg.Provider
func NewRetriever(cfg model.SearchConfig, client *http.Client) (Retriever, error) {
	switch cfg.Provider {
	case "tavily", "":
		return NewTavilyRetriever(cfg, client)

	case "static":
		if cfg.Fixtures == "" {
			return nil, goerr.New("static search provider needs a fixtures file (--fixtures)")
		}
		fixtures, err := LoadFixtures(cfg.Fixtures)
		if err != nil {
			return nil, err
		}
		return NewStaticRetriever(fixtures), nil

	default:
		return nil, goerr.New("unknown search provider (supported: tavily, static)",
			goerr.V("provider", cfg.Provider))
	}
}

// NewReranker creates the reranker selected by cfg.Provider, or nil when disabled
func NewReranker(cfg model.RerankConfig, client *http.Client) (Reranker, error) {
	switch cfg.Provider {
	case "":
		return nil, nil
	case "cohere":
		return NewCohereReranker(cfg.APIKey, cfg.Model, client)
	default:
		return nil, goerr.New("unknown rerank provider (supported: cohere)", goerr.V("provider", cfg.Provider))
	}
}

// DefaultHost returns the host search calls are throttled under
func DefaultHost(cfg model.SearchConfig) string {
	if cfg.BaseURL != "" {
		return worker.HostKey(cfg.BaseURL)
	}
	if cfg.Provider == "static" {
		return "static"
	}
	return worker.HostKey(DefaultTavilyURL)
}
