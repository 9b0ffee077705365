// Package executor provides the bounded worker pool that runs per-module
// transformations in parallel.
package executor

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/vk/merlin/internal/ctxlog"
)

// Task is one unit of work. i is the task's index in the batch.
type Task func(ctx context.Context, i int) error

// Pool runs batches of tasks on at most Workers goroutines. A Pool holds no
// goroutines between batches and may be shared by successive builds.
type Pool struct {
	workers int
}

// New creates a pool. A non-positive size means runtime.NumCPU().
func New(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{workers: workers}
}

// Workers returns the pool size.
func (p *Pool) Workers() int { return p.workers }

// Map runs fn for every index in [0, n) and waits for all of them. The first
// failure cancels the context passed to tasks that have not finished yet;
// tasks not yet started are skipped. The returned error is the failure with
// the lowest index, ignoring cancellations caused by it.
func (p *Pool) Map(ctx context.Context, n int, fn Task) error {
	if n == 0 {
		return nil
	}
	logger := ctxlog.FromContext(ctx)

	queue := make(chan int, n)
	for i := range n {
		queue <- i
	}
	close(queue)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make([]error, n)
	workers := min(p.workers, n)
	var wg sync.WaitGroup
	wg.Add(workers)

	logger.Debug("Starting worker pool.", "workers", workers, "tasks", n)
	for w := range workers {
		go func(workerID int) {
			defer wg.Done()
			for i := range queue {
				if err := runCtx.Err(); err != nil {
					errs[i] = err
					continue
				}
				if err := fn(runCtx, i); err != nil {
					logger.Debug("Task failed.", "workerID", workerID, "task", i, "error", err)
					errs[i] = err
					cancel()
				}
			}
		}(w)
	}
	wg.Wait()

	return firstCause(ctx, errs)
}

// firstCause picks the lowest-index error that is not a cancellation, unless
// the caller's own context was the one cancelled.
func firstCause(ctx context.Context, errs []error) error {
	var cancelled error
	for i, err := range errs {
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			if cancelled == nil {
				cancelled = fmt.Errorf("task %d: %w", i, err)
			}
			continue
		}
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return cancelled
}
