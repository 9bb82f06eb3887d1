package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Step is the outcome of resuming a Coroutine once.
//
// A step with Done set carries the final Value and Err. Otherwise the
// coroutine is suspended: if Wait is non-nil it must not be resumed before
// Wait is closed; a nil Wait means it is ready to be resumed immediately.
type Step struct {
	Done  bool
	Value any
	Err   error
	Wait  <-chan struct{}
}

// Coroutine is a suspendable computation driven by a Loop.
type Coroutine interface {
	Resume(ctx context.Context) Step
}

// Canceler is implemented by coroutines that hold resources which must be
// released when the loop abandons them before completion.
type Canceler interface {
	Cancel()
}

// AsyncFunc is the body of a Go-native coroutine.
type AsyncFunc func(ctx context.Context, co *Co) (any, error)

// Go returns a Coroutine running fn. fn executes on its own goroutine but only
// between suspension points, in lock step with the loop driving it.
func Go(fn AsyncFunc) Coroutine {
	return &goCoroutine{
		fn:     fn,
		resume: make(chan struct{}),
		yield:  make(chan Step, 1),
		abort:  make(chan struct{}),
	}
}

type aborted struct{}

type goCoroutine struct {
	fn       AsyncFunc
	started  bool
	finished bool
	resume   chan struct{}
	yield    chan Step
	abort    chan struct{}
	once     sync.Once
}

func (g *goCoroutine) Resume(ctx context.Context) Step {
	if g.finished {
		return Step{Done: true, Err: ErrCoroutineDone}
	}
	if !g.started {
		g.started = true
		go g.run(ctx)
	} else {
		g.resume <- struct{}{}
	}
	st := <-g.yield
	if st.Done {
		g.finished = true
	}
	return st
}

func (g *goCoroutine) Cancel() {
	g.once.Do(func() { close(g.abort) })
}

func (g *goCoroutine) run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(aborted); ok {
				return
			}
			g.yield <- Step{Done: true, Err: fmt.Errorf("%w: %v", ErrPanic, r)}
		}
	}()
	v, err := g.fn(ctx, &Co{g: g, ctx: ctx})
	g.yield <- Step{Done: true, Value: v, Err: err}
}

// Co is the handle a coroutine body uses to suspend itself.
// It must only be used from the body it was passed to.
type Co struct {
	g   *goCoroutine
	ctx context.Context
}

// Context returns the context the coroutine was first resumed with.
func (c *Co) Context() context.Context { return c.ctx }

// Wait suspends the coroutine until ch is closed.
func (c *Co) Wait(ch <-chan struct{}) {
	c.g.yield <- Step{Wait: ch}
	select {
	case <-c.g.resume:
	case <-c.g.abort:
		panic(aborted{})
	}
}

// Yield suspends the coroutine and lets the loop resume it right away.
func (c *Co) Yield() { c.Wait(nil) }

// Sleep suspends the coroutine for at least d.
func (c *Co) Sleep(d time.Duration) {
	done := make(chan struct{})
	t := time.AfterFunc(d, func() { close(done) })
	defer t.Stop()
	c.Wait(done)
}

// Await runs fn on a separate goroutine and suspends until it returns.
// fn must not touch state guarded by the exclusive region.
func (c *Co) Await(fn func(ctx context.Context) (any, error)) (any, error) {
	var (
		v    any
		err  error
		done = make(chan struct{})
	)
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: %v", ErrPanic, r)
			}
		}()
		v, err = fn(c.ctx)
	}()
	c.Wait(done)
	return v, err
}
