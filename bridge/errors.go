package bridge

import "errors"

var (
	// ErrPoolClosed is returned by Run after Close.
	ErrPoolClosed = errors.New("bridge: pool is closed")
	// ErrPanic wraps a panic recovered from submitted work or a coroutine body.
	ErrPanic = errors.New("bridge: recovered panic")
	// ErrLoopRunning is returned when a worker's loop is entered re-entrantly.
	ErrLoopRunning = errors.New("bridge: loop is already running")
	// ErrCoroutineDone is returned when a finished coroutine is resumed.
	ErrCoroutineDone = errors.New("bridge: coroutine already finished")
)
