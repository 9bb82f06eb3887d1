package luahost

import (
	"context"
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/dmitrymomot/dispatchkit/bridge"
)

// coroutine runs a Lua function on its own thread, driven by a bridge.Loop.
// sleep and websocket recv suspend it by yielding with a wait channel set.
type coroutine struct {
	h    *Host
	fn   *lua.LFunction
	args func(L *lua.LState) []lua.LValue

	parent *lua.LState
	th     *lua.LState
	done   bool

	// Set by the Go function that yields; consumed by the next Resume.
	wait   <-chan struct{}
	resume []lua.LValue
}

func (h *Host) newCoroutine(fn *lua.LFunction, args func(*lua.LState) []lua.LValue) *coroutine {
	return &coroutine{h: h, fn: fn, args: args}
}

// Resume implements bridge.Coroutine. The caller holds the region.
func (c *coroutine) Resume(ctx context.Context) (st bridge.Step) {
	if c.done {
		return bridge.Step{Done: true, Err: bridge.ErrCoroutineDone}
	}
	if c.h.closed.Load() {
		c.finish()
		return bridge.Step{Done: true, Err: ErrClosed}
	}
	defer func() {
		if r := recover(); r != nil {
			c.finish()
			st = bridge.Step{Done: true, Err: fmt.Errorf("%w: %v", ErrScript, r)}
		}
	}()

	var args []lua.LValue
	if c.th == nil {
		c.parent = c.h.thread(ctx)
		c.th, _ = c.parent.NewThread()
		c.th.SetContext(ctx)
		c.h.coroutines[c.th] = c
		if c.args != nil {
			args = c.args(c.th)
		}
	} else {
		args, c.resume = c.resume, nil
	}
	c.wait = nil

	state, err, rets := c.parent.Resume(c.th, c.fn, args...)
	switch state {
	case lua.ResumeYield:
		return bridge.Step{Wait: c.wait}
	case lua.ResumeOK:
		c.finish()
		v, err := result(trimNil(rets))
		return bridge.Step{Done: true, Value: v, Err: err}
	default:
		c.finish()
		return bridge.Step{Done: true, Err: c.h.liftError(err)}
	}
}

// Cancel implements bridge.Canceler.
func (c *coroutine) Cancel() { c.finish() }

func (c *coroutine) finish() {
	c.done = true
	if c.th != nil {
		delete(c.h.coroutines, c.th)
	}
}

// trimNil undoes the single nil Resume reports for a function that returned
// nothing.
func trimNil(rets []lua.LValue) []lua.LValue {
	if len(rets) == 1 && rets[0] == lua.LNil {
		return nil
	}
	return rets
}
