package router

import "errors"

var (
	// ErrUnsupportedMethod is returned by Insert for methods outside the supported set.
	ErrUnsupportedMethod = errors.New("router: unsupported http method")
	// ErrInvalidPattern is returned by Insert when the path pattern is rejected.
	ErrInvalidPattern = errors.New("router: invalid path pattern")
)
