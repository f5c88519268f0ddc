package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/ppiankov/claimcheck/internal/document"
	"github.com/ppiankov/claimcheck/internal/extract"
	"github.com/ppiankov/claimcheck/internal/logging"
	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/ppiankov/claimcheck/internal/score"
	"github.com/ppiankov/claimcheck/internal/worker"
)

// Extractor turns document text into claims
type Extractor interface {
	Extract(ctx context.Context, text string) (*extract.Extraction, error)
}

// Verifier produces a verdict for one claim; it never fails
type Verifier interface {
	Verify(ctx context.Context, claim model.Claim) model.VerificationResult
}

// Observer is told about each finished claim; done counts results so far
type Observer func(done, total int, result model.VerificationResult)

// Pipeline orchestrates extraction and concurrent verification
type Pipeline struct {
	extractor Extractor
	verifier  Verifier
	workers   int
	observer  Observer
	loader    *document.Loader
	now       func() time.Time
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithObserver registers a progress callback
func WithObserver(fn Observer) Option {
	return func(p *Pipeline) { p.observer = fn }
}

// WithLoader enables RunSource for file paths, URLs and stdin
func WithLoader(l *document.Loader) Option {
	return func(p *Pipeline) { p.loader = l }
}

// WithClock overrides the report timestamps
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// NewPipeline creates a new pipeline verifying up to workers claims at once
func NewPipeline(extractor Extractor, verifier Verifier, workers int, opts ...Option) *Pipeline {
	if workers <= 0 {
		workers = model.DefaultConfig().Concurrency.Workers
	}
	p := &Pipeline{
		extractor: extractor,
		verifier:  verifier,
		workers:   workers,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run checks every claim in text.
//
// It fails only when extraction fails (model.ErrEmptyDocument). When ctx is
// cancelled, no further claims are dispatched, claims already being verified
// finish, and the partial report is returned with Cancelled set and the
// never-verified claim IDs in Pending.
func (p *Pipeline) Run(ctx context.Context, text string) (*model.Report, error) {
	runID := uuid.NewString()
	log := logging.From(ctx).With("run_id", runID)
	ctx = logging.With(ctx, log)

	report := &model.Report{
		RunID:     runID,
		StartedAt: p.now().UTC(),
	}

	log.Info("pipeline.run.start", "chars", len(text), "workers", p.workers)

	extraction, err := p.extractor.Extract(ctx, text)
	if err != nil {
		log.Warn("pipeline.run.failed", "stage", "extract", "error", err)
		return nil, err
	}
	report.Claims = extraction.Claims
	report.Warnings = extraction.Warnings

	report.Results = p.verifyAll(ctx, extraction.Claims)
	report.Pending = pendingIDs(extraction.Claims, report.Results)
	report.Cancelled = ctx.Err() != nil
	report.Summary = score.Summarize(report.Results)
	report.FinishedAt = p.now().UTC()

	log.Info("pipeline.run.done",
		"claims", len(report.Claims),
		"verified", report.Summary.Verified,
		"inaccurate", report.Summary.Inaccurate,
		"false", report.Summary.False,
		"unverifiable", report.Summary.Unverifiable,
		"pending", len(report.Pending),
		"warnings", len(report.Warnings),
		"cancelled", report.Cancelled,
		"elapsed_ms", report.FinishedAt.Sub(report.StartedAt).Milliseconds(),
	)

	return report, nil
}

// RunSource loads a document (file path, URL or "-") and runs it
func (p *Pipeline) RunSource(ctx context.Context, source string) (*model.Report, error) {
	if p.loader == nil {
		return nil, goerr.New("pipeline has no document loader", goerr.V("source", source))
	}

	doc, err := p.loader.Load(ctx, source)
	if err != nil {
		return nil, err
	}

	report, err := p.Run(ctx, doc.Text)
	if err != nil {
		return nil, goerr.Wrap(err, "check document", goerr.V("source", source))
	}
	report.Source = source
	return report, nil
}

// CheckSource implements worker.Checker for batch runs
func (p *Pipeline) CheckSource(ctx context.Context, source string) (*model.Report, error) {
	return p.RunSource(ctx, source)
}

func (p *Pipeline) verifyAll(ctx context.Context, claims []model.Claim) []model.VerificationResult {
	results := make([]model.VerificationResult, 0, len(claims))
	if len(claims) == 0 {
		return results
	}

	total := len(claims)
	done := 0
	pool := worker.NewPool(p.workers,
		worker.WithRecover(func(job worker.Job, perr *worker.PanicError) worker.Result {
			cj := job.(*claimJob)
			logging.From(ctx).Error("pipeline.claim.panic", "claim_id", cj.claim.ID, "panic", fmt.Sprint(perr.Value))
			return &claimResult{result: model.Unverifiable(cj.claim.ID, "verification failed: "+perr.Error())}
		}),
		worker.WithResultHook(func(r worker.Result) {
			done++
			if p.observer != nil {
				p.observer(done, total, r.(*claimResult).result)
			}
		}),
	)
	pool.Start(ctx)

	for _, c := range claims {
		if !pool.Submit(&claimJob{claim: c, verifier: p.verifier}) {
			logging.From(ctx).Warn("pipeline.dispatch.stopped", "claim_id", c.ID, "error", ctx.Err())
			break
		}
	}

	for _, r := range pool.Wait() {
		results = append(results, r.(*claimResult).result)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].ClaimID < results[j].ClaimID
	})
	return results
}

func pendingIDs(claims []model.Claim, results []model.VerificationResult) []int {
	finished := make(map[int]bool, len(results))
	for _, r := range results {
		finished[r.ClaimID] = true
	}

	var pending []int
	for _, c := range claims {
		if !finished[c.ID] {
			pending = append(pending, c.ID)
		}
	}
	return pending
}

// claimJob verifies one claim on the worker pool
type claimJob struct {
	claim    model.Claim
	verifier Verifier
}

func (j *claimJob) Execute(ctx context.Context) worker.Result {
	res := j.verifier.Verify(ctx, j.claim)
	res.ClaimID = j.claim.ID
	if res.Verdict == "" {
		res = model.Unverifiable(j.claim.ID, "verification failed: no verdict")
	}
	return &claimResult{result: res}
}

type claimResult struct {
	result model.VerificationResult
}

func (r *claimResult) GetError() error {
	return nil
}
