package background

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/dispatchkit/bridge"
	"github.com/dmitrymomot/dispatchkit/pkg/async"
	"github.com/dmitrymomot/dispatchkit/pkg/logger"
)

// Outcome is reported to the observer for every scheduled task.
type Outcome string

const (
	OutcomeOK     Outcome = "ok"
	OutcomeFailed Outcome = "failed"
	// OutcomeDropped means the task never ran, e.g. because the pool closed.
	OutcomeDropped Outcome = "dropped"
)

// Scheduler runs tasks on a pool once their response has been flushed.
type Scheduler struct {
	pool      *bridge.Pool
	logger    *slog.Logger
	flushWait time.Duration
	observe   func(Outcome)
	wg        sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger used for task failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithFlushWait bounds how long a task waits for the flush signal before it
// runs anyway. Panics if d <= 0.
func WithFlushWait(d time.Duration) Option {
	if d <= 0 {
		panic("background.WithFlushWait: duration must be > 0")
	}
	return func(s *Scheduler) { s.flushWait = d }
}

// WithObserver registers a callback receiving each task outcome.
func WithObserver(fn func(Outcome)) Option {
	return func(s *Scheduler) { s.observe = fn }
}

// NewScheduler returns a Scheduler submitting to pool.
func NewScheduler(pool *bridge.Pool, opts ...Option) *Scheduler {
	s := &Scheduler{
		pool:      pool,
		logger:    logger.Discard(),
		flushWait: 30 * time.Second,
		observe:   func(Outcome) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule runs t after flushed completes. It never blocks the caller.
func (s *Scheduler) Schedule(t *Task, flushed *async.Future[struct{}]) {
	if t == nil || t.Len() == 0 {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := flushed.AwaitWithTimeout(s.flushWait); err != nil {
			s.logger.Warn("background task started without flush signal", logger.Error(err))
		}

		var taskErr error
		err := s.pool.Run(context.Background(), func(ctx context.Context, w *bridge.Worker) error {
			taskErr = t.Execute(ctx, w)
			return nil
		})
		switch {
		case err != nil:
			s.logger.Error("background task dropped", logger.Error(err))
			s.observe(OutcomeDropped)
		case taskErr != nil:
			s.logger.Warn("background task failed", logger.Error(taskErr))
			s.observe(OutcomeFailed)
		default:
			s.observe(OutcomeOK)
		}
	}()
}

// Wait blocks until every scheduled task has finished.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
