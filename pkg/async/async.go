package async

import (
	"context"
	"sync"
	"time"
)

// Future is the eventual result of an asynchronous operation. It completes
// exactly once, either because the function started by Async returned or
// because the resolve function of a Promise was called.
type Future[U any] struct {
	result U
	err    error
	once   sync.Once
	done   chan struct{}
}

func newFuture[U any]() *Future[U] {
	return &Future[U]{done: make(chan struct{})}
}

func (f *Future[U]) complete(res U, err error) bool {
	completed := false
	f.once.Do(func() {
		f.result = res
		f.err = err
		close(f.done)
		completed = true
	})
	return completed
}

// Done returns a channel closed when the future completes.
func (f *Future[U]) Done() <-chan struct{} { return f.done }

// Await blocks until the future completes or ctx is done.
func (f *Future[U]) Await(ctx context.Context) (U, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		var zero U
		return zero, ctx.Err()
	}
}

// AwaitWithTimeout blocks until the future completes or timeout elapses, in
// which case ErrTimeout is returned.
func (f *Future[U]) AwaitWithTimeout(timeout time.Duration) (U, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-f.done:
		return f.result, f.err
	case <-t.C:
		var zero U
		return zero, ErrTimeout
	}
}

// IsComplete reports whether the future has completed without blocking.
func (f *Future[U]) IsComplete() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Resolve completes a Promise's future. Only the first call has an effect;
// it reports whether it was that call.
type Resolve[U any] func(res U, err error) bool

// Promise returns a future completed by the returned resolve function. The
// transport layer uses it to signal that a response has been flushed.
func Promise[U any]() (*Future[U], Resolve[U]) {
	f := newFuture[U]()
	return f, f.complete
}

// Async runs fn on its own goroutine and returns its Future. A context that is
// already done completes the future with ctx.Err() without calling fn.
func Async[T any, U any](ctx context.Context, param T, fn func(context.Context, T) (U, error)) *Future[U] {
	f := newFuture[U]()
	go func() {
		if err := ctx.Err(); err != nil {
			var zero U
			f.complete(zero, err)
			return
		}
		res, err := fn(ctx, param)
		f.complete(res, err)
	}()
	return f
}
