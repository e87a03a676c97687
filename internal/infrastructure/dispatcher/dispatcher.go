package dispatcher

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

// Pool runs CPU-bound jobs on a fixed set of worker goroutines so that
// decode/resize/encode work never occupies the I/O handler goroutines.
type Pool struct {
	tasks chan func()

	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewPool starts a pool with the given number of workers, defaulting to
// the number of CPUs.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	p := &Pool{tasks: make(chan func())}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		task()
	}
}

// Close stops accepting work and waits for in-flight jobs to finish.
func (p *Pool) Close() {
	p.closeOnce.Do(func() { close(p.tasks) })
	p.wg.Wait()
}

type result[T any] struct {
	value T
	err   error
}

// Dispatch hands fn to a pool worker and waits for it to finish. If ctx
// is cancelled before a worker picks the job up, the job never runs. Once
// running, the job is not preempted: cancellation abandons the wait and
// the result is discarded.
func Dispatch[T any](ctx context.Context, p *Pool, fn func() (T, error)) (T, error) {
	var zero T

	// An already-cancelled context must not race an idle worker in the
	// select below.
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	done := make(chan result[T], 1)
	task := func() {
		value, err := fn()
		done <- result[T]{value: value, err: err}
	}

	select {
	case p.tasks <- task:
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	select {
	case res := <-done:
		return res.value, res.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Limiter enforces the global and per-bucket concurrency caps. Either
// semaphore may be absent. Acquisition order is global then bucket, with
// releases in reverse, so waiters on the shared global semaphore cannot
// deadlock against bucket-level holders.
type Limiter struct {
	global *semaphore.Weighted
	bucket *semaphore.Weighted
}

// NewGlobalSemaphore builds the process-wide semaphore, or nil when no
// cap is configured.
func NewGlobalSemaphore(max int) *semaphore.Weighted {
	if max <= 0 {
		return nil
	}
	return semaphore.NewWeighted(int64(max))
}

// NewLimiter pairs the shared global semaphore with a bucket-local cap.
func NewLimiter(global *semaphore.Weighted, maxConcurrency int) *Limiter {
	l := &Limiter{global: global}
	if maxConcurrency > 0 {
		l.bucket = semaphore.NewWeighted(int64(maxConcurrency))
	}
	return l
}

// Acquire blocks until both permits are held, returning the release
// function. The release must run on every exit path.
func (l *Limiter) Acquire(ctx context.Context) (func(), error) {
	if l.global != nil {
		if err := l.global.Acquire(ctx, 1); err != nil {
			return nil, err
		}
	}
	if l.bucket != nil {
		if err := l.bucket.Acquire(ctx, 1); err != nil {
			if l.global != nil {
				l.global.Release(1)
			}
			return nil, err
		}
	}

	return func() {
		if l.bucket != nil {
			l.bucket.Release(1)
		}
		if l.global != nil {
			l.global.Release(1)
		}
	}, nil
}

// Flight coalesces concurrent on-demand computations of the same variant
// when no cache is configured to do it. Keys are canonical variant paths.
type Flight struct {
	g singleflight.Group
}

// Do runs fn once per key across concurrent callers; every caller
// receives the shared result. The computation runs to completion even if
// individual waiters cancel.
func (f *Flight) Do(ctx context.Context, key string, fn func() ([]byte, error)) ([]byte, error) {
	ch := f.g.DoChan(key, func() (any, error) {
		return fn()
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
