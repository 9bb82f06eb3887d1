package background

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrymomot/dispatchkit/bridge"
)

// ErrNoWorker is returned for coroutine entries executed without a worker.
var ErrNoWorker = errors.New("background: coroutine entry requires a worker loop")

// Func is a synchronous task function.
type Func func(ctx context.Context) error

// CoroutineFunc starts an asynchronous task function.
type CoroutineFunc func(ctx context.Context) bridge.Coroutine

type entry struct {
	fn Func
	co CoroutineFunc
}

// Task is an ordered list of deferred functions.
type Task struct {
	mu      sync.Mutex
	entries []entry
}

// New returns an empty Task.
func New() *Task { return &Task{} }

// Add appends a synchronous function.
func (t *Task) Add(fn Func) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, entry{fn: fn})
}

// AddCoroutine appends an asynchronous function driven by the worker's loop.
func (t *Task) AddCoroutine(fn CoroutineFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, entry{co: fn})
}

// Len returns the number of queued functions.
func (t *Task) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Execute runs every entry in order. A failing entry does not stop the ones
// after it; all failures are joined into the returned error.
func (t *Task) Execute(ctx context.Context, w *bridge.Worker) error {
	t.mu.Lock()
	entries := append([]entry(nil), t.entries...)
	t.mu.Unlock()

	var errs []error
	for i, e := range entries {
		if err := runEntry(ctx, w, e); err != nil {
			errs = append(errs, fmt.Errorf("background task %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func runEntry(ctx context.Context, w *bridge.Worker, e entry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", bridge.ErrPanic, r)
		}
	}()
	if e.fn != nil {
		return e.fn(ctx)
	}
	if w == nil {
		return ErrNoWorker
	}
	_, err = w.Loop().RunUntilComplete(ctx, e.co(ctx))
	return err
}
