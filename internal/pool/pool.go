// Package pool provides a bounded worker pool with a future-style
// submission API. The pipeline uses one pool for CPU-bound work and one
// for I/O-bound calls so a slow network call cannot starve local work.
package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned for submissions after Close.
var ErrClosed = errors.New("worker pool closed")

// Pool bounds the number of concurrently executing tasks.
type Pool struct {
	sem    chan struct{}
	wg     sync.WaitGroup
	closed atomic.Bool
}

// New creates a pool running at most size tasks at once. Size below 1 is
// treated as 1.
func New(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{sem: make(chan struct{}, size)}
}

// Close marks the pool closed and waits for in-flight tasks to finish.
func (p *Pool) Close() {
	p.closed.Store(true)
	p.wg.Wait()
}

// Result carries a task's value or error.
type Result[T any] struct {
	Value T
	Err   error
}

// Future is a handle to a submitted task.
type Future[T any] struct {
	ch chan Result[T]
}

// Wait blocks until the task completes or the context is done. A context
// error abandons the wait; the task itself still runs to completion.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case r := <-f.ch:
		return r.Value, r.Err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Submit schedules fn on the pool and returns a future for its result.
// If every worker slot is busy the task waits for one; a canceled context
// resolves the future with the context error without running fn.
func Submit[T any](ctx context.Context, p *Pool, fn func(ctx context.Context) (T, error)) *Future[T] {
	f := &Future[T]{ch: make(chan Result[T], 1)}

	if p.closed.Load() {
		var zero T
		f.ch <- Result[T]{Value: zero, Err: ErrClosed}
		return f
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		select {
		case p.sem <- struct{}{}:
			defer func() { <-p.sem }()
		case <-ctx.Done():
			var zero T
			f.ch <- Result[T]{Value: zero, Err: ctx.Err()}
			return
		}

		v, err := fn(ctx)
		f.ch <- Result[T]{Value: v, Err: err}
	}()
	return f
}
