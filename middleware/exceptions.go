package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/dmitrymomot/dispatchkit/handler"
	"github.com/dmitrymomot/dispatchkit/request"
)

// ExceptionFunc produces a result for a failed request. Returning nil passes
// the error on.
type ExceptionFunc func(ctx context.Context, rc *request.Context, err error) any

// Exceptions maps errors to results by error type or by status code. Type
// handlers are tried first, in registration order.
type Exceptions struct {
	byType   []ExceptionFunc
	byStatus map[int]ExceptionFunc
}

// NewExceptions returns an empty registry.
func NewExceptions() *Exceptions {
	return &Exceptions{byStatus: map[int]ExceptionFunc{}}
}

// Status handles errors whose status code is code. Errors without a
// StatusCode method count as 500.
func (e *Exceptions) Status(code int, fn ExceptionFunc) *Exceptions {
	e.byStatus[code] = fn
	return e
}

// HandleType handles errors matching E through errors.As.
func HandleType[E error](e *Exceptions, fn func(ctx context.Context, rc *request.Context, err E) any) *Exceptions {
	e.byType = append(e.byType, func(ctx context.Context, rc *request.Context, err error) any {
		var target E
		if errors.As(err, &target) {
			return fn(ctx, rc, target)
		}
		return nil
	})
	return e
}

func (e *Exceptions) OnError(ctx context.Context, rc *request.Context, err error) any {
	for _, fn := range e.byType {
		if res := fn(ctx, rc, err); res != nil {
			return res
		}
	}
	if fn, ok := e.byStatus[StatusOf(err)]; ok {
		return fn(ctx, rc, err)
	}
	return nil
}

// StatusOf returns the status carried by err, or 500.
func StatusOf(err error) int {
	var sc handler.StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return http.StatusInternalServerError
}
