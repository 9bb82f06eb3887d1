package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dmitrymomot/dispatchkit/handler"
	"github.com/dmitrymomot/dispatchkit/request"
)

// ErrorHandler turns unhandled errors into a 500 JSON body. In debug mode the
// body names the error type and message; otherwise it is generic. HTTP errors
// are left for the default translation.
type ErrorHandler struct {
	Debug bool
}

func (h ErrorHandler) OnError(_ context.Context, _ *request.Context, err error) any {
	var httpErr *handler.HTTPError
	if errors.As(err, &httpErr) {
		return nil
	}
	if !h.Debug {
		return handler.Pair(map[string]any{
			"error":  "Internal Server Error",
			"detail": "An unexpected error occurred",
		}, http.StatusInternalServerError)
	}
	return handler.Pair(map[string]any{
		"error":  "Internal Server Error",
		"type":   fmt.Sprintf("%T", rootCause(err)),
		"detail": err.Error(),
	}, http.StatusInternalServerError)
}

func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
