package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ppiankov/claimcheck/internal/cache"
	"github.com/ppiankov/claimcheck/internal/logging"
	"github.com/ppiankov/claimcheck/internal/worker"
)

// Middleware decorates a Gateway
type Middleware func(Gateway) Gateway

// Chain applies middlewares so the first one listed is the outermost
func Chain(g Gateway, mws ...Middleware) Gateway {
	for i := len(mws) - 1; i >= 0; i-- {
		g = mws[i](g)
	}
	return g
}

// GatewayFunc adapts a function to Gateway
type GatewayFunc struct {
	ProviderName string
	Fn           func(ctx context.Context, req Request) (string, error)
}

// Name returns the provider name
func (f GatewayFunc) Name() string { return f.ProviderName }

// Complete calls Fn
func (f GatewayFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f.Fn(ctx, req)
}

// WithTimeout bounds every call. A timeout surfaces as a *GatewayError.
func WithTimeout(d time.Duration) Middleware {
	return func(next Gateway) Gateway {
		if d <= 0 {
			return next
		}
		return GatewayFunc{ProviderName: next.Name(), Fn: func(ctx context.Context, req Request) (string, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()

			out, err := next.Complete(ctx, req)
			if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
				var ge *GatewayError
				if !errors.As(err, &ge) {
					return "", gatewayErr(next.Name(), 0, context.DeadlineExceeded)
				}
			}
			return out, err
		}}
	}
}

// WithRateLimit waits on limiter keyed by host before each call
func WithRateLimit(limiter *worker.Limiter, host string) Middleware {
	return func(next Gateway) Gateway {
		if limiter == nil {
			return next
		}
		return GatewayFunc{ProviderName: next.Name(), Fn: func(ctx context.Context, req Request) (string, error) {
			if err := limiter.Wait(ctx, host); err != nil {
				return "", gatewayErr(next.Name(), 0, err)
			}
			return next.Complete(ctx, req)
		}}
	}
}

// WithCache serves repeated requests from c. Replies that fail their shape
// are never stored, so a retry is not answered with the same bad payload.
func WithCache(c cache.Cache, model string, ttl time.Duration) Middleware {
	return func(next Gateway) Gateway {
		if c == nil {
			return next
		}
		return GatewayFunc{ProviderName: next.Name(), Fn: func(ctx context.Context, req Request) (string, error) {
			shape := ""
			if req.Shape != nil {
				shape = req.Shape.Name()
			}
			key := cache.Key("llm", next.Name(), model, shape, req.System, req.Prompt)

			if b, ok := c.Get(ctx, key); ok {
				logging.From(ctx).Debug("llm.cache.hit", "provider", next.Name(), "shape", shape)
				return string(b), nil
			}

			out, err := next.Complete(ctx, req)
			if err != nil {
				return "", err
			}
			if req.Shape != nil {
				if _, verr := req.Shape.Validate(out); verr != nil {
					return out, nil
				}
			}
			if serr := c.Set(ctx, key, []byte(out), ttl); serr != nil {
				logging.From(ctx).Warn("llm.cache.set_failed", "error", serr)
			}
			return out, nil
		}}
	}
}

// WithLogging emits start/ok/error events for each call
func WithLogging() Middleware {
	return func(next Gateway) Gateway {
		return GatewayFunc{ProviderName: next.Name(), Fn: func(ctx context.Context, req Request) (string, error) {
			log := logging.From(ctx)
			rid := uuid.NewString()
			start := time.Now()

			log.Debug("llm.call.start",
				"req_id", rid,
				"provider", next.Name(),
				"prompt_len", len(req.Prompt),
				"structured", req.Shape != nil,
			)

			out, err := next.Complete(ctx, req)
			if err != nil {
				log.Warn("llm.call.error",
					"req_id", rid, "provider", next.Name(), "error", err,
					"elapsed_ms", time.Since(start).Milliseconds(),
				)
				return "", err
			}

			log.Debug("llm.call.ok",
				"req_id", rid, "provider", next.Name(),
				"reply_len", len(out),
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return out, nil
		}}
	}
}

// DefaultHost returns the host a provider's calls are throttled under
func DefaultHost(cfg Config) string {
	if cfg.BaseURL != "" {
		return worker.HostKey(cfg.BaseURL)
	}
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return "api.openai.com"
	case "anthropic", "claude":
		return "api.anthropic.com"
	case "ollama":
		return "localhost:11434"
	case "gemini":
		return "generativelanguage.googleapis.com"
	}
	return cfg.Provider
}
