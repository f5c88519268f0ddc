package search

import (
	"context"
	"fmt"

	"github.com/ppiankov/claimcheck/internal/model"
)

// Retriever is the evidence retrieval capability: query in, ranked snippets out
type Retriever interface {
	// Name returns the backend name
	Name() string

	// Search returns ranked results for query. An empty slice means nothing was found.
	Search(ctx context.Context, query string) ([]model.SearchResult, error)
}

// Reranker reorders documents by relevance to a query
type Reranker interface {
	// Rerank returns document indices ordered from most to least relevant
	Rerank(ctx context.Context, query string, docs []string) ([]int, error)
}

// RetrievalError reports a failed search call (network, quota, timeout, bad status)
type RetrievalError struct {
	Backend    string
	Query      string
	StatusCode int
	Err        error
}

func (e *RetrievalError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("search %s: status %d: %v", e.Backend, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("search %s: %v", e.Backend, e.Err)
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}

func retrievalErr(backend, query string, status int, err error) error {
	return &RetrievalError{Backend: backend, Query: query, StatusCode: status, Err: err}
}
