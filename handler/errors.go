package handler

import "errors"

var (
	// ErrNotCallable is returned when a Handler implements neither Caller nor Starter.
	ErrNotCallable = errors.New("handler: value is neither a sync nor an async handler")
	// ErrRender wraps failures of Renderer.Render.
	ErrRender = errors.New("handler: failed to render response")
)
