package handler

import (
	"fmt"
	"maps"
	"net/http"
)

// HTTPError is an error that maps directly to a response with its own status,
// detail message and header overrides.
type HTTPError struct {
	Status  int
	Detail  string
	Headers map[string]string
}

// NewHTTPError returns an HTTPError with the given status and detail.
func NewHTTPError(status int, detail string) *HTTPError {
	return &HTTPError{Status: status, Detail: detail}
}

// Errorf returns an HTTPError with a formatted detail.
func Errorf(status int, format string, args ...any) *HTTPError {
	return &HTTPError{Status: status, Detail: fmt.Sprintf(format, args...)}
}

func (e *HTTPError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return http.StatusText(e.Status)
}

// StatusCode returns the HTTP status code.
func (e *HTTPError) StatusCode() int { return e.Status }

// WithHeaders returns a copy carrying additional headers.
func (e *HTTPError) WithHeaders(headers map[string]string) *HTTPError {
	cp := *e
	cp.Headers = make(map[string]string, len(e.Headers)+len(headers))
	maps.Copy(cp.Headers, e.Headers)
	maps.Copy(cp.Headers, headers)
	return &cp
}

// Common client and server errors. Use WithHeaders to attach headers rather
// than mutating them.
var (
	ErrBadRequest          = &HTTPError{Status: http.StatusBadRequest, Detail: "Bad Request"}
	ErrUnauthorized        = &HTTPError{Status: http.StatusUnauthorized, Detail: "Unauthorized"}
	ErrForbidden           = &HTTPError{Status: http.StatusForbidden, Detail: "Forbidden"}
	ErrNotFound            = &HTTPError{Status: http.StatusNotFound, Detail: "Not Found"}
	ErrMethodNotAllowed    = &HTTPError{Status: http.StatusMethodNotAllowed, Detail: "Method Not Allowed"}
	ErrConflict            = &HTTPError{Status: http.StatusConflict, Detail: "Conflict"}
	ErrTooManyRequests     = &HTTPError{Status: http.StatusTooManyRequests, Detail: "Too Many Requests"}
	ErrInternalServerError = &HTTPError{Status: http.StatusInternalServerError, Detail: "Internal Server Error"}
	ErrServiceUnavailable  = &HTTPError{Status: http.StatusServiceUnavailable, Detail: "Service Unavailable"}
)
