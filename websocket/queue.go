package websocket

import (
	"context"
	"sync"
)

// queue is an unbounded FIFO with a broadcast change signal, safe for any
// number of producers and consumers.
type queue[T any] struct {
	mu      sync.Mutex
	items   []T
	closed  bool
	changed chan struct{}
}

func newQueue[T any]() *queue[T] {
	return &queue[T]{changed: make(chan struct{})}
}

func (q *queue[T]) notify() {
	close(q.changed)
	q.changed = make(chan struct{})
}

// push appends v. It reports false when the queue is closed.
func (q *queue[T]) push(v T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.items = append(q.items, v)
	q.notify()
	return true
}

// next pops the head if there is one. Otherwise it reports whether the queue
// is closed and returns a channel closed on the next change.
func (q *queue[T]) next() (v T, ok, closed bool, changed <-chan struct{}) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) > 0 {
		v = q.items[0]
		var zero T
		q.items[0] = zero
		q.items = q.items[1:]
		return v, true, q.closed, nil
	}
	return v, false, q.closed, q.changed
}

func (q *queue[T]) pop(ctx context.Context) (T, error) {
	for {
		v, ok, closed, changed := q.next()
		if ok {
			return v, nil
		}
		if closed {
			return v, ErrConnectionClosed
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return v, ctx.Err()
		}
	}
}

// close stops further pushes. Queued items stay poppable.
func (q *queue[T]) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.notify()
}

func (q *queue[T]) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
