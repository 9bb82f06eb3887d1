package signature

import "errors"

var (
	// ErrInvalidHandler is returned when a handler cannot be introspected.
	ErrInvalidHandler = errors.New("signature: invalid handler")
	// ErrIndexMismatch is returned when the cache and router indices diverge.
	ErrIndexMismatch = errors.New("signature: cache index does not match route index")
)
