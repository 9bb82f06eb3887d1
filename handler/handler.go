package handler

import (
	"context"

	"github.com/dmitrymomot/dispatchkit/background"
	"github.com/dmitrymomot/dispatchkit/bridge"
	"github.com/dmitrymomot/dispatchkit/request"
)

// Handler is an application callback with a static parameter table.
// Concrete handlers also implement exactly one of Caller or Starter.
type Handler interface {
	Params() []Param
}

// Caller is a synchronous handler.
type Caller interface {
	Handler
	Call(ctx context.Context, args Args) (any, error)
}

// Starter is an asynchronous handler; the returned coroutine is driven by the
// worker loop until it completes.
type Starter interface {
	Handler
	Start(ctx context.Context, args Args) bridge.Coroutine
}

// Func is the body of a synchronous Go handler.
type Func func(ctx context.Context, args Args) (any, error)

// AsyncFunc is the body of an asynchronous Go handler.
type AsyncFunc func(ctx context.Context, args Args, co *bridge.Co) (any, error)

type syncHandler struct {
	fn     Func
	params []Param
}

// Sync returns a synchronous handler.
func Sync(fn Func, params ...Param) Caller {
	return &syncHandler{fn: fn, params: params}
}

func (h *syncHandler) Params() []Param { return h.params }

func (h *syncHandler) Call(ctx context.Context, args Args) (any, error) {
	return h.fn(ctx, args)
}

type asyncHandler struct {
	fn     AsyncFunc
	params []Param
}

// Async returns an asynchronous handler.
func Async(fn AsyncFunc, params ...Param) Starter {
	return &asyncHandler{fn: fn, params: params}
}

func (h *asyncHandler) Params() []Param { return h.params }

func (h *asyncHandler) Start(ctx context.Context, args Args) bridge.Coroutine {
	return bridge.Go(func(ctx context.Context, co *bridge.Co) (any, error) {
		return h.fn(ctx, args, co)
	})
}

// Args are the bound arguments of one call, keyed by parameter name.
type Args map[string]any

// Get returns the raw bound value.
func (a Args) Get(name string) (any, bool) {
	v, ok := a[name]
	return v, ok
}

// Has reports whether name was bound.
func (a Args) Has(name string) bool {
	_, ok := a[name]
	return ok
}

// String returns a string argument or "".
func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

// Int returns an integer argument or 0.
func (a Args) Int(name string) int64 {
	switch v := a[name].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// Float returns a numeric argument or 0.
func (a Args) Float(name string) float64 {
	switch v := a[name].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}

// Bool returns a boolean argument or false.
func (a Args) Bool(name string) bool {
	b, _ := a[name].(bool)
	return b
}

// Map returns an object argument, typically a validated body.
func (a Args) Map(name string) map[string]any {
	m, _ := a[name].(map[string]any)
	return m
}

// Request returns the bound request context, if any.
func (a Args) Request() *request.Context {
	rc, _ := a["request"].(*request.Context)
	return rc
}

// Task returns a bound background task, if any.
func (a Args) Task(name string) *background.Task {
	t, _ := a[name].(*background.Task)
	return t
}

// Upload returns a bound uploaded file, if any.
func (a Args) Upload(name string) *request.UploadFile {
	f, _ := a[name].(*request.UploadFile)
	return f
}
