package bridge

import "context"

// Exclusive is an exclusive execution region. Unlike sync.Mutex, acquisition
// honours context cancellation. A nil *Exclusive is a valid region that never
// blocks.
type Exclusive struct {
	ch chan struct{}
}

// NewExclusive returns a free region.
func NewExclusive() *Exclusive {
	return &Exclusive{ch: make(chan struct{}, 1)}
}

// Acquire blocks until the region is held or ctx is done.
func (x *Exclusive) Acquire(ctx context.Context) error {
	if x == nil {
		return nil
	}
	select {
	case x.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire takes the region only if it is free.
func (x *Exclusive) TryAcquire() bool {
	if x == nil {
		return true
	}
	select {
	case x.ch <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees the region. Releasing a region that is not held panics.
func (x *Exclusive) Release() {
	if x == nil {
		return
	}
	select {
	case <-x.ch:
	default:
		panic("bridge: release of an exclusive region that is not held")
	}
}

// Do runs fn while holding the region.
func (x *Exclusive) Do(ctx context.Context, fn func()) error {
	if err := x.Acquire(ctx); err != nil {
		return err
	}
	defer x.Release()
	fn()
	return nil
}
