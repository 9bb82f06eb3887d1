package luahost

import "errors"

var (
	// ErrScript wraps errors raised by Lua code.
	ErrScript = errors.New("luahost: script error")
	// ErrNotFunction is returned when a handler name does not refer to a global function.
	ErrNotFunction = errors.New("luahost: not a function")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("luahost: host closed")
	// ErrManifest wraps manifest parsing and registration failures.
	ErrManifest = errors.New("luahost: invalid manifest")
)
