package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// mockResult implements Result
type mockResult struct {
	id  int
	err error
}

func (r *mockResult) GetError() error {
	return r.err
}

// mockJob implements Job
type mockJob struct {
	id        int
	duration  time.Duration
	shouldErr bool
	panics    bool
	executed  *int32 // atomic counter
}

func (j *mockJob) Execute(ctx context.Context) Result {
	if j.executed != nil {
		atomic.AddInt32(j.executed, 1)
	}
	if j.panics {
		panic("boom")
	}
	if j.duration > 0 {
		select {
		case <-time.After(j.duration):
		case <-ctx.Done():
			return &mockResult{id: j.id, err: ctx.Err()}
		}
	}
	if j.shouldErr {
		return &mockResult{id: j.id, err: errors.New("job error")}
	}
	return &mockResult{id: j.id}
}

func TestNewPool(t *testing.T) {
	p1 := NewPool(5)
	if p1.workers != 5 {
		t.Errorf("expected 5 workers, got %d", p1.workers)
	}

	p2 := NewPool(0)
	if p2.workers != 1 {
		t.Errorf("expected default 1 worker for 0 input, got %d", p2.workers)
	}

	p3 := NewPool(-1)
	if p3.workers != 1 {
		t.Errorf("expected default 1 worker for negative input, got %d", p3.workers)
	}
}

func TestPool_Execution(t *testing.T) {
	pool := NewPool(2)
	pool.Start(context.Background())

	var executed int32
	count := 10

	for i := 0; i < count; i++ {
		if !pool.Submit(&mockJob{id: i, executed: &executed}) {
			t.Fatalf("submit %d refused", i)
		}
	}

	results := pool.Wait()

	if len(results) != count {
		t.Errorf("expected %d results, got %d", count, len(results))
	}

	if atomic.LoadInt32(&executed) != int32(count) {
		t.Errorf("expected %d executed jobs, got %d", count, executed)
	}
}

func TestPool_ManyJobsDoNotDeadlock(t *testing.T) {
	// Far more jobs than workers; results must be drained while submitting
	pool := NewPool(2)
	pool.Start(context.Background())

	done := make(chan []Result)
	go func() {
		for i := 0; i < 500; i++ {
			pool.Submit(&mockJob{id: i})
		}
		done <- pool.Wait()
	}()

	select {
	case results := <-done:
		if len(results) != 500 {
			t.Errorf("expected 500 results, got %d", len(results))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("pool deadlocked")
	}
}

// concurrencyJob tracks max concurrent executions
type concurrencyJob struct {
	start    func()
	end      func()
	duration time.Duration
}

func (j *concurrencyJob) Execute(ctx context.Context) Result {
	if j.start != nil {
		j.start()
	}
	time.Sleep(j.duration)
	if j.end != nil {
		j.end()
	}
	return &mockResult{}
}

func TestPool_Concurrency(t *testing.T) {
	workers := 10
	pool := NewPool(workers)
	pool.Start(context.Background())

	var current int32
	var maxConcurrent int32
	var completed int32
	var mu sync.Mutex

	totalJobs := 50

	for i := 0; i < totalJobs; i++ {
		pool.Submit(&concurrencyJob{
			start: func() {
				curr := atomic.AddInt32(&current, 1)
				mu.Lock()
				if curr > maxConcurrent {
					maxConcurrent = curr
				}
				mu.Unlock()
			},
			end: func() {
				atomic.AddInt32(&current, -1)
				atomic.AddInt32(&completed, 1)
			},
			duration: 10 * time.Millisecond,
		})
	}

	pool.Wait()

	if atomic.LoadInt32(&completed) != int32(totalJobs) {
		t.Errorf("expected %d completed jobs, got %d", totalJobs, completed)
	}

	mu.Lock()
	max := maxConcurrent
	mu.Unlock()

	if max > int32(workers) {
		t.Errorf("max concurrency %d exceeded workers %d", max, workers)
	}
}

func TestPool_ErrorHandling(t *testing.T) {
	pool := NewPool(2)
	pool.Start(context.Background())

	pool.Submit(&mockJob{shouldErr: true})
	pool.Submit(&mockJob{shouldErr: false})

	results := pool.Wait()
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	errCount := 0
	for _, res := range results {
		if res.GetError() != nil {
			errCount++
		}
	}

	if errCount != 1 {
		t.Errorf("expected 1 error, got %d", errCount)
	}
}

func TestPool_PanicRecovered(t *testing.T) {
	pool := NewPool(2)
	pool.Start(context.Background())

	pool.Submit(&mockJob{id: 1, panics: true})
	pool.Submit(&mockJob{id: 2})

	results := pool.Wait()
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	var perr *PanicError
	found := false
	for _, res := range results {
		if errors.As(res.GetError(), &perr) {
			found = true
			if perr.Value != "boom" {
				t.Errorf("unexpected panic value %v", perr.Value)
			}
		}
	}
	if !found {
		t.Error("expected a PanicError result")
	}
}

func TestPool_WithRecover(t *testing.T) {
	pool := NewPool(1, WithRecover(func(job Job, err *PanicError) Result {
		return &mockResult{id: job.(*mockJob).id, err: err}
	}))
	pool.Start(context.Background())
	pool.Submit(&mockJob{id: 42, panics: true})

	results := pool.Wait()
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if got := results[0].(*mockResult).id; got != 42 {
		t.Errorf("expected recovered result for job 42, got %d", got)
	}
}

func TestPool_ResultHook(t *testing.T) {
	var seen int32
	pool := NewPool(3, WithResultHook(func(Result) {
		atomic.AddInt32(&seen, 1)
	}))
	pool.Start(context.Background())

	for i := 0; i < 7; i++ {
		pool.Submit(&mockJob{id: i})
	}
	pool.Wait()

	if seen != 7 {
		t.Errorf("expected hook called 7 times, got %d", seen)
	}
}

func TestPool_CancelDetachesInFlight(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool(1)
	pool.Start(ctx)

	started := make(chan struct{})
	pool.Submit(&concurrencyJob{
		start:    func() { close(started) },
		duration: 50 * time.Millisecond,
	})
	<-started

	cancel()

	// The in-flight job runs to completion without seeing the cancellation
	slow := &mockJob{id: 9, duration: 10 * time.Millisecond}
	if pool.Submit(slow) {
		t.Error("expected submit to be refused after cancel")
	}

	results := pool.Wait()
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if err := results[0].GetError(); err != nil {
		t.Errorf("in-flight job should not be cancelled: %v", err)
	}
}

func TestPool_ExecContextIgnoresCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool(1)
	pool.Start(ctx)

	started := make(chan struct{})
	job := &ctxWatchJob{started: started}
	pool.Submit(job)
	<-started
	cancel()

	results := pool.Wait()
	if len(results) != 1 || results[0].GetError() != nil {
		t.Fatalf("expected clean result, got %+v", results)
	}
}

// ctxWatchJob waits briefly and reports whether its context was cancelled
type ctxWatchJob struct {
	started chan struct{}
}

func (j *ctxWatchJob) Execute(ctx context.Context) Result {
	close(j.started)
	select {
	case <-ctx.Done():
		return &mockResult{err: ctx.Err()}
	case <-time.After(50 * time.Millisecond):
		return &mockResult{}
	}
}
