package middleware

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/dispatchkit/request"
)

// BeforeRequest runs before argument binding. Returning a nil context keeps
// the current one; returning an error aborts the request as a handler failure.
type BeforeRequest interface {
	BeforeRequest(ctx context.Context, rc *request.Context) (*request.Context, error)
}

// AfterRequest runs on the handler result. The returned value replaces the
// result, so hooks that do not change it return it as is.
type AfterRequest interface {
	AfterRequest(ctx context.Context, rc *request.Context, result any) (any, error)
}

// OnError runs when the handler fails. A nil result passes the error on.
type OnError interface {
	OnError(ctx context.Context, rc *request.Context, err error) any
}

// BeforeFunc adapts a function to BeforeRequest.
type BeforeFunc func(ctx context.Context, rc *request.Context) (*request.Context, error)

func (f BeforeFunc) BeforeRequest(ctx context.Context, rc *request.Context) (*request.Context, error) {
	return f(ctx, rc)
}

// AfterFunc adapts a function to AfterRequest.
type AfterFunc func(ctx context.Context, rc *request.Context, result any) (any, error)

func (f AfterFunc) AfterRequest(ctx context.Context, rc *request.Context, result any) (any, error) {
	return f(ctx, rc, result)
}

// ErrorFunc adapts a function to OnError.
type ErrorFunc func(ctx context.Context, rc *request.Context, err error) any

func (f ErrorFunc) OnError(ctx context.Context, rc *request.Context, err error) any {
	return f(ctx, rc, err)
}

// Chain holds registered middlewares split by capability. Registration must
// complete before the chain is used concurrently.
type Chain struct {
	n       int
	before  []BeforeRequest
	after   []AfterRequest
	onError []OnError
}

// NewChain returns a chain with mws registered in order.
func NewChain(mws ...any) (*Chain, error) {
	c := &Chain{}
	for _, mw := range mws {
		if err := c.Use(mw); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Use registers mw under every capability it implements.
func (c *Chain) Use(mw any) error {
	b, isBefore := mw.(BeforeRequest)
	a, isAfter := mw.(AfterRequest)
	e, isError := mw.(OnError)
	if !isBefore && !isAfter && !isError {
		return fmt.Errorf("%w: %T", ErrNoCapability, mw)
	}
	if isBefore {
		c.before = append(c.before, b)
	}
	if isAfter {
		c.after = append(c.after, a)
	}
	if isError {
		c.onError = append(c.onError, e)
	}
	c.n++
	return nil
}

// Len returns the number of registered middlewares. A nil chain has none.
func (c *Chain) Len() int {
	if c == nil {
		return 0
	}
	return c.n
}

// Before runs the before hooks in registration order.
func (c *Chain) Before(ctx context.Context, rc *request.Context) (*request.Context, error) {
	if c == nil {
		return rc, nil
	}
	for _, h := range c.before {
		next, err := h.BeforeRequest(ctx, rc)
		if err != nil {
			return rc, err
		}
		if next != nil {
			rc = next
		}
	}
	return rc, nil
}

// After runs the after hooks in reverse registration order.
func (c *Chain) After(ctx context.Context, rc *request.Context, result any) (any, error) {
	if c == nil {
		return result, nil
	}
	for i := len(c.after) - 1; i >= 0; i-- {
		next, err := c.after[i].AfterRequest(ctx, rc, result)
		if err != nil {
			return nil, err
		}
		result = next
	}
	return result, nil
}

// OnError returns the first non-nil result of the error hooks.
func (c *Chain) OnError(ctx context.Context, rc *request.Context, err error) (any, bool) {
	if c == nil {
		return nil, false
	}
	for _, h := range c.onError {
		if res := h.OnError(ctx, rc, err); res != nil {
			return res, true
		}
	}
	return nil, false
}
