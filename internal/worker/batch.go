package worker

import (
	"bufio"
	"context"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/ppiankov/claimcheck/internal/model"
)

// Checker checks one document source (file path or URL) and returns its report
type Checker interface {
	CheckSource(ctx context.Context, source string) (*model.Report, error)
}

// DocumentJob checks a single document source
type DocumentJob struct {
	Index   int
	Source  string
	Checker Checker
}

// Execute executes the document job
func (j *DocumentJob) Execute(ctx context.Context) Result {
	report, err := j.Checker.CheckSource(ctx, j.Source)
	return &DocumentResult{
		Index:  j.Index,
		Source: j.Source,
		Report: report,
		Error:  err,
	}
}

// DocumentResult represents the result of a document job
type DocumentResult struct {
	Index  int
	Source string
	Report *model.Report
	Error  error
}

// GetError returns the error from the document result
func (r *DocumentResult) GetError() error {
	return r.Error
}

// BatchProcessor checks multiple documents concurrently
type BatchProcessor struct {
	checker     Checker
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(checker Checker, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		checker:     checker,
		concurrency: concurrency,
	}
}

// Process checks every source and returns results in input order.
// Sources not dispatched before ctx is done carry ctx's error.
func (b *BatchProcessor) Process(ctx context.Context, sources []string) []*DocumentResult {
	out := make([]*DocumentResult, len(sources))
	if len(sources) == 0 {
		return out
	}

	pool := NewPool(b.concurrency, WithRecover(func(job Job, err *PanicError) Result {
		dj := job.(*DocumentJob)
		return &DocumentResult{Index: dj.Index, Source: dj.Source, Error: err}
	}))
	pool.Start(ctx)

	for i, src := range sources {
		if !pool.Submit(&DocumentJob{Index: i, Source: src, Checker: b.checker}) {
			break
		}
	}

	for _, r := range pool.Wait() {
		dr := r.(*DocumentResult)
		out[dr.Index] = dr
	}

	for i, src := range sources {
		if out[i] == nil {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			out[i] = &DocumentResult{Index: i, Source: src, Error: err}
		}
	}

	return out
}

// ReadSourcesFromFile reads document sources from a file (one per line).
// Blank lines and '#' comments are skipped; duplicates are dropped.
func ReadSourcesFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, goerr.Wrap(err, "open source list", goerr.V("path", filePath))
	}
	defer func() { _ = file.Close() }()

	var sources []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			sources = append(sources, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, goerr.Wrap(err, "scan source list", goerr.V("path", filePath))
	}

	return sources, nil
}
