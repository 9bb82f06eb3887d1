package luahost

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"

	"github.com/dmitrymomot/dispatchkit/bridge"
	"github.com/dmitrymomot/dispatchkit/pkg/logger"
)

// Host is a Lua interpreter shared by every handler it produces.
type Host struct {
	L      *lua.LState
	region *bridge.Exclusive
	logger *slog.Logger
	closed atomic.Bool

	// Coroutines by the Lua thread they run on. Guarded by region.
	coroutines map[*lua.LState]*coroutine
}

// Option configures a Host.
type Option func(*Host)

// WithExclusive sets the region guarding the interpreter. Panics on nil.
func WithExclusive(region *bridge.Exclusive) Option {
	if region == nil {
		panic("luahost.WithExclusive: nil region")
	}
	return func(h *Host) { h.region = region }
}

// WithLogger sets the logger behind the Lua log table.
func WithLogger(l *slog.Logger) Option {
	return func(h *Host) {
		if l != nil {
			h.logger = l
		}
	}
}

// New returns a Host with the base, table, string and math libraries and the
// dispatch globals installed.
func New(opts ...Option) *Host {
	h := &Host{
		logger:     logger.Discard(),
		coroutines: make(map[*lua.LState]*coroutine),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.region == nil {
		h.region = bridge.NewExclusive()
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	h.L = L
	h.installGlobals()
	return h
}

// Exclusive returns the region every call into the interpreter runs in.
func (h *Host) Exclusive() *bridge.Exclusive { return h.region }

// DoString runs a chunk of Lua source.
func (h *Host) DoString(ctx context.Context, src string) error {
	return h.load(ctx, func(th *lua.LState) error { return th.DoString(src) })
}

// DoFile runs the Lua file at path.
func (h *Host) DoFile(ctx context.Context, path string) error {
	return h.load(ctx, func(th *lua.LState) error { return th.DoFile(path) })
}

func (h *Host) load(ctx context.Context, fn func(*lua.LState) error) (err error) {
	if h.closed.Load() {
		return ErrClosed
	}
	if err := h.region.Acquire(ctx); err != nil {
		return err
	}
	defer h.region.Release()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrScript, r)
		}
	}()

	th := h.thread(ctx)
	return h.liftError(fn(th))
}

// Close releases the interpreter. Calls after Close fail with ErrClosed.
func (h *Host) Close() {
	if h.closed.Swap(true) {
		return
	}
	_ = h.region.Do(context.Background(), h.L.Close)
}

// Function returns the global function name.
func (h *Host) Function(name string) (*lua.LFunction, error) {
	if h.closed.Load() {
		return nil, ErrClosed
	}
	var lv lua.LValue
	if err := h.region.Do(context.Background(), func() { lv = h.L.GetGlobal(name) }); err != nil {
		return nil, err
	}
	fn, ok := lv.(*lua.LFunction)
	if !ok {
		return nil, fmt.Errorf("%w: %q is %s", ErrNotFunction, name, lv.Type())
	}
	return fn, nil
}

// thread returns a fresh Lua thread sharing the main state's globals.
// The caller must hold the region.
func (h *Host) thread(ctx context.Context) *lua.LState {
	th, _ := h.L.NewThread()
	if ctx != nil {
		th.SetContext(ctx)
	}
	return th
}

// call runs fn synchronously on a fresh thread and returns its results. The
// caller must hold the region.
func (h *Host) call(ctx context.Context, fn *lua.LFunction, args ...lua.LValue) (rets []lua.LValue, err error) {
	if h.closed.Load() {
		return nil, ErrClosed
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrScript, r)
		}
	}()

	th := h.thread(ctx)
	if err := th.CallByParam(lua.P{Fn: fn, NRet: lua.MultRet, Protect: true}, args...); err != nil {
		return nil, h.liftError(err)
	}
	n := th.GetTop()
	rets = make([]lua.LValue, n)
	for i := 1; i <= n; i++ {
		rets[i-1] = th.Get(i)
	}
	th.SetTop(0)
	return rets, nil
}

// liftError recovers Go errors raised from Lua, such as abort's HTTP errors,
// and wraps everything else in ErrScript.
func (h *Host) liftError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *lua.ApiError
	if !errors.As(err, &apiErr) {
		return errors.Join(ErrScript, err)
	}
	if ud, ok := apiErr.Object.(*lua.LUserData); ok {
		if e, ok := ud.Value.(error); ok {
			return e
		}
	}
	if apiErr.Cause != nil {
		return fmt.Errorf("%w: %w", ErrScript, apiErr.Cause)
	}
	return fmt.Errorf("%w: %s", ErrScript, apiErr.Object.String())
}

// raise aborts the running Lua code with err, preserving it for liftError.
func raise(L *lua.LState, err error) int {
	ud := L.NewUserData()
	ud.Value = err
	L.Error(ud, 0)
	return 0
}
