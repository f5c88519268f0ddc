package search

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ppiankov/claimcheck/internal/cache"
	"github.com/ppiankov/claimcheck/internal/logging"
	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/ppiankov/claimcheck/internal/worker"
)

// Middleware decorates a Retriever
type Middleware func(Retriever) Retriever

// Chain applies middlewares so the first one listed is the outermost
func Chain(r Retriever, mws ...Middleware) Retriever {
	for i := len(mws) - 1; i >= 0; i-- {
		r = mws[i](r)
	}
	return r
}

// RetrieverFunc adapts a function to Retriever
type RetrieverFunc struct {
	Backend string
	Fn      func(ctx context.Context, query string) ([]model.SearchResult, error)
}

// Name returns the backend name
func (f RetrieverFunc) Name() string { return f.Backend }

// Search calls Fn
func (f RetrieverFunc) Search(ctx context.Context, query string) ([]model.SearchResult, error) {
	return f.Fn(ctx, query)
}

// WithTimeout bounds every search call. A timeout surfaces as a *RetrievalError.
func WithTimeout(d time.Duration) Middleware {
	return func(next Retriever) Retriever {
		if d <= 0 {
			return next
		}
		return RetrieverFunc{Backend: next.Name(), Fn: func(ctx context.Context, query string) ([]model.SearchResult, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()

			results, err := next.Search(ctx, query)
			if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
				var re *RetrievalError
				if !errors.As(err, &re) {
					return nil, retrievalErr(next.Name(), query, 0, context.DeadlineExceeded)
				}
			}
			return results, err
		}}
	}
}

// WithRateLimit waits on limiter keyed by host before each call
func WithRateLimit(limiter *worker.Limiter, host string) Middleware {
	return func(next Retriever) Retriever {
		if limiter == nil {
			return next
		}
		return RetrieverFunc{Backend: next.Name(), Fn: func(ctx context.Context, query string) ([]model.SearchResult, error) {
			if err := limiter.Wait(ctx, host); err != nil {
				return nil, retrievalErr(next.Name(), query, 0, err)
			}
			return next.Search(ctx, query)
		}}
	}
}

// WithCache stores non-empty result sets keyed by backend and query
func WithCache(c cache.Cache, ttl time.Duration) Middleware {
	return func(next Retriever) Retriever {
		if c == nil {
			return next
		}
		return RetrieverFunc{Backend: next.Name(), Fn: func(ctx context.Context, query string) ([]model.SearchResult, error) {
			key := cache.Key("search", next.Name(), query)

			if b, ok := c.Get(ctx, key); ok {
				var cached []model.SearchResult
				if err := json.Unmarshal(b, &cached); err == nil {
					logging.From(ctx).Debug("search.cache.hit", "backend", next.Name(), "query", query)
					return cached, nil
				}
			}

			results, err := next.Search(ctx, query)
			if err != nil || len(results) == 0 {
				return results, err
			}

			if b, merr := json.Marshal(results); merr == nil {
				if serr := c.Set(ctx, key, b, ttl); serr != nil {
					logging.From(ctx).Warn("search.cache.set_failed", "error", serr)
				}
			}
			return results, nil
		}}
	}
}

// WithLogging emits one event per search call
func WithLogging() Middleware {
	return func(next Retriever) Retriever {
		return RetrieverFunc{Backend: next.Name(), Fn: func(ctx context.Context, query string) ([]model.SearchResult, error) {
			start := time.Now()
			results, err := next.Search(ctx, query)
			log := logging.From(ctx)
			if err != nil {
				log.Warn("search.query.error",
					"backend", next.Name(), "query", query, "error", err,
					"elapsed_ms", time.Since(start).Milliseconds(),
				)
				return nil, err
			}
			log.Debug("search.query.ok",
				"backend", next.Name(), "query", query, "results", len(results),
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return results, nil
		}}
	}
}

// RerankerFunc adapts a function to Reranker
type RerankerFunc func(ctx context.Context, query string, docs []string) ([]int, error)

// Rerank calls f
func (f RerankerFunc) Rerank(ctx context.Context, query string, docs []string) ([]int, error) {
	return f(ctx, query, docs)
}

// RerankWithTimeout bounds every rerank call
func RerankWithTimeout(r Reranker, d time.Duration) Reranker {
	if r == nil || d <= 0 {
		return r
	}
	return RerankerFunc(func(ctx context.Context, query string, docs []string) ([]int, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return r.Rerank(ctx, query, docs)
	})
}
