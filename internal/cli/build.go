package cli

import (
	"context"
	"io"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/ppiankov/claimcheck/internal/cache"
	"github.com/ppiankov/claimcheck/internal/document"
	"github.com/ppiankov/claimcheck/internal/extract"
	"github.com/ppiankov/claimcheck/internal/llm"
	"github.com/ppiankov/claimcheck/internal/logging"
	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/ppiankov/claimcheck/internal/pipeline"
	"github.com/ppiankov/claimcheck/internal/search"
	"github.com/ppiankov/claimcheck/internal/util"
	"github.com/ppiankov/claimcheck/internal/validate"
	"github.com/ppiankov/claimcheck/internal/verify"
	"github.com/ppiankov/claimcheck/internal/worker"
)

// fetchRPS throttles document fetches per host unless robots.txt asks for less
const fetchRPS = 1.0

// linkCheckWorkers bounds concurrent cited-link checks per claim
const linkCheckWorkers = 4

// buildPipeline wires backends, decorators and the pipeline from configuration.
// The returned cleanup releases cache connections.
func buildPipeline(ctx context.Context, cfg model.Config, stdin io.Reader, opts ...pipeline.Option) (*pipeline.Pipeline, func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	log := logging.From(ctx)

	respCache, err := cache.New(cfg.Cache)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if c, ok := respCache.(io.Closer); ok {
			_ = c.Close()
		}
	}

	client := util.NewHTTPClient(0, cfg.Fetch.HTTPProxy, cfg.Fetch.HTTPSProxy, cfg.Fetch.NoProxy)

	llmCfg := llm.ConfigFromModel(cfg.LLM, client)
	provider, err := llm.NewProvider(ctx, llmCfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	backend, err := search.NewRetriever(cfg.Search, client)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	limiter := worker.NewLimiter(cfg.Concurrency.LLMRPS, 1)
	searchHost := search.DefaultHost(cfg.Search)
	limiter.SetHostRate(searchHost, cfg.Concurrency.SearchRPS, 1)

	gateway := llm.Chain(provider,
		llm.WithLogging(),
		llm.WithCache(respCache, llmCfg.Model, cfg.Cache.TTLDuration()),
		llm.WithRateLimit(limiter, llm.DefaultHost(llmCfg)),
		llm.WithTimeout(cfg.Timeouts.LLMTimeout()),
	)
	retriever := search.Chain(backend,
		search.WithLogging(),
		search.WithCache(respCache, cfg.Cache.TTLDuration()),
		search.WithRateLimit(limiter, searchHost),
		search.WithTimeout(cfg.Timeouts.SearchTimeout()),
	)

	verifyOpts := []verify.Option{
		verify.WithAuthority(validate.NewAuthorityClassifier(&cfg.Authority)),
	}

	reranker, err := search.NewReranker(cfg.Rerank, client)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if reranker != nil {
		verifyOpts = append(verifyOpts, verify.WithReranker(search.RerankWithTimeout(reranker, cfg.Timeouts.SearchTimeout())))
	}

	if cfg.Verify.CheckLinks {
		verifyOpts = append(verifyOpts, verify.WithLinkChecker(validate.NewLinkChecker(
			cfg.Timeouts.HTTPTimeout(), linkCheckWorkers, cfg.Fetch.UserAgent,
			cfg.Fetch.HTTPProxy, cfg.Fetch.HTTPSProxy, cfg.Fetch.NoProxy,
		)))
	}

	fetcher := document.NewFetcher(document.FetcherOptions{
		Timeout:       cfg.Timeouts.HTTPTimeout(),
		UserAgent:     cfg.Fetch.UserAgent,
		MaxBytes:      cfg.Fetch.MaxBodyBytes,
		RespectRobots: cfg.Fetch.RespectRobots,
		HTTPProxy:     cfg.Fetch.HTTPProxy,
		HTTPSProxy:    cfg.Fetch.HTTPSProxy,
		NoProxy:       cfg.Fetch.NoProxy,
		Limiter:       worker.NewLimiter(fetchRPS, 1),
	})
	if stdin == nil {
		stdin = os.Stdin
	}
	loader := document.NewLoader(fetcher, stdin, cfg.Fetch.MaxBodyBytes)

	extractor := extract.NewClaimExtractor(gateway, cfg.Extract)
	verifier := verify.NewClaimVerifier(gateway, retriever, cfg.Verify, verifyOpts...)

	p := pipeline.NewPipeline(extractor, verifier, cfg.Concurrency.Workers,
		append([]pipeline.Option{pipeline.WithLoader(loader)}, opts...)...)

	log.Debug("pipeline.build.done",
		"llm", provider.Name(),
		"model", llmCfg.Model,
		"search", backend.Name(),
		"rerank", cfg.Rerank.Provider,
		"cache", cfg.Cache.Backend,
		"workers", cfg.Concurrency.Workers,
	)
	return p, cleanup, nil
}

// requireSource rejects an empty document source early
func requireSource(source string) error {
	if source == "" {
		return goerr.New("no document given: pass a file path, - for stdin, or --url")
	}
	return nil
}
