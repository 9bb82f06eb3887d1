package server

import "errors"

var (
	// ErrStart indicates that the server failed to start: the listener could
	// not be opened or a startup hook failed.
	ErrStart = errors.New("server: failed to start")
	// ErrShutdown indicates that graceful shutdown did not complete.
	ErrShutdown = errors.New("server: failed to shutdown gracefully")
	// ErrRunning is returned when registering routes or hooks on a running
	// server, or when Run is called twice.
	ErrRunning = errors.New("server: already running")
	// ErrInvalidRoute wraps routing and signature failures at registration.
	ErrInvalidRoute = errors.New("server: invalid route")
)
