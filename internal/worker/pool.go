package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
)

// Job represents a unit of work to be executed
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

// PanicError carries a value recovered from a panicking job
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("job panicked: %v", e.Value)
}

// RecoverFunc turns a panicking job into a result
type RecoverFunc func(job Job, err *PanicError) Result

// Option configures a Pool
type Option func(*Pool)

// WithRecover sets how panicking jobs are reported
func WithRecover(fn RecoverFunc) Option {
	return func(p *Pool) { p.recoverFn = fn }
}

// WithResultHook registers a callback invoked once per result, serially, as results arrive
func WithResultHook(fn func(Result)) Option {
	return func(p *Pool) { p.onResult = fn }
}

// Pool runs jobs on a fixed number of workers.
//
// The context passed to Start scopes dispatch only: once it is done, Submit
// refuses new jobs, while jobs already handed to a worker run to completion
// under a context detached from its cancellation.
type Pool struct {
	workers   int
	jobQueue  chan Job
	results   chan Result
	wg        sync.WaitGroup
	dispatch  context.Context
	execCtx   context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	recoverFn RecoverFunc
	onResult  func(Result)

	collected []Result
	collectWG sync.WaitGroup
}

// NewPool creates a new worker pool with the specified number of workers
func NewPool(workers int, opts ...Option) *Pool {
	if workers <= 0 {
		workers = 1
	}

	p := &Pool{
		workers:  workers,
		jobQueue: make(chan Job), // Unbuffered: a sent job is always in a worker's hands
		results:  make(chan Result, workers),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the workers and the result collector
func (p *Pool) Start(ctx context.Context) {
	p.dispatch, p.cancel = context.WithCancel(ctx)
	p.execCtx = context.WithoutCancel(ctx)

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	p.collectWG.Add(1)
	go p.collect()
}

// worker is the worker goroutine that processes jobs
func (p *Pool) worker() {
	defer p.wg.Done()

	for job := range p.jobQueue {
		p.results <- p.execute(job)
	}
}

func (p *Pool) execute(job Job) (result Result) {
	defer func() {
		if v := recover(); v != nil {
			perr := &PanicError{Value: v, Stack: debug.Stack()}
			if p.recoverFn != nil {
				result = p.recoverFn(job, perr)
			} else {
				result = &failedResult{err: perr}
			}
		}
	}()
	return job.Execute(p.execCtx)
}

// collect drains results so workers never block on a full channel
func (p *Pool) collect() {
	defer p.collectWG.Done()

	for r := range p.results {
		p.collected = append(p.collected, r)
		if p.onResult != nil {
			p.onResult(r)
		}
	}
}

// Submit hands a job to a worker, blocking until one is free.
// It returns false without dispatching once the Start context is done.
func (p *Pool) Submit(job Job) bool {
	if p.dispatch.Err() != nil {
		return false
	}

	select {
	case <-p.dispatch.Done():
		return false
	case p.jobQueue <- job:
		return true
	}
}

// Wait waits for all dispatched jobs to complete and returns their results
// in completion order
func (p *Pool) Wait() []Result {
	p.closeQueue()
	p.wg.Wait()
	close(p.results)
	p.collectWG.Wait()
	p.cancel()

	return p.collected
}

func (p *Pool) closeQueue() {
	p.closeOnce.Do(func() {
		close(p.jobQueue)
	})
}

type failedResult struct {
	err error
}

func (r *failedResult) GetError() error {
	return r.err
}
