package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/dmitrymomot/dispatchkit/pkg/logger"
)

type job struct {
	ctx  context.Context
	fn   func(context.Context, *Worker) error
	err  error
	done chan struct{}
}

// Pool is a bounded blocking-offload pool. Workers are spawned on demand up to
// the configured size and then live until Close.
type Pool struct {
	size   int
	region *Exclusive
	logger *slog.Logger

	spawn *semaphore.Weighted
	jobs  chan *job
	quit  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup

	workers atomic.Int64
	loops   atomic.Int64
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithSize bounds the number of workers. Panics if n < 1.
func WithSize(n int) PoolOption {
	if n < 1 {
		panic("bridge.WithSize: size must be >= 1")
	}
	return func(p *Pool) { p.size = n }
}

// WithExclusive makes every job run inside region.
func WithExclusive(region *Exclusive) PoolOption {
	return func(p *Pool) { p.region = region }
}

// WithLogger sets the pool logger.
func WithLogger(l *slog.Logger) PoolOption {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPool returns a pool with no running workers.
func NewPool(opts ...PoolOption) *Pool {
	p := &Pool{
		size:   runtime.GOMAXPROCS(0) * 4,
		logger: logger.Discard(),
		jobs:   make(chan *job),
		quit:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.spawn = semaphore.NewWeighted(int64(p.size))
	return p
}

// Exclusive returns the region jobs run in. It may be nil.
func (p *Pool) Exclusive() *Exclusive { return p.region }

// Size returns the maximum number of workers.
func (p *Pool) Size() int { return p.size }

// Workers returns the number of workers spawned so far.
func (p *Pool) Workers() int { return int(p.workers.Load()) }

// LoopsCreated returns how many worker loops have been created.
func (p *Pool) LoopsCreated() int { return int(p.loops.Load()) }

// Run executes fn on a worker inside the pool's region and returns its error.
// Once fn has started Run waits for it regardless of ctx.
func (p *Pool) Run(ctx context.Context, fn func(ctx context.Context, w *Worker) error) error {
	select {
	case <-p.quit:
		return ErrPoolClosed
	default:
	}

	j := &job{ctx: ctx, fn: fn, done: make(chan struct{})}
	select {
	case p.jobs <- j:
	default:
		// No worker is waiting: grow while below size, else queue for the
		// next one to free up.
		if p.spawn.TryAcquire(1) {
			p.startWorker()
		}
		select {
		case p.jobs <- j:
		case <-ctx.Done():
			return ctx.Err()
		case <-p.quit:
			return ErrPoolClosed
		}
	}
	<-j.done
	return j.err
}

// Close stops the workers after their current job and waits for them.
func (p *Pool) Close() {
	p.once.Do(func() { close(p.quit) })
	p.wg.Wait()
}

func (p *Pool) startWorker() {
	w := &Worker{id: int(p.workers.Add(1)), pool: p}
	p.wg.Add(1)
	go w.run()
}

// Worker is a persistent pool goroutine.
type Worker struct {
	id   int
	pool *Pool
	loop *Loop
}

// ID returns the worker number, starting at 1.
func (w *Worker) ID() int { return w.id }

// Loop returns the worker's cooperative loop, creating it on first use.
func (w *Worker) Loop() *Loop {
	if w.loop == nil {
		w.loop = &Loop{region: w.pool.region}
		w.pool.loops.Add(1)
	}
	return w.loop
}

func (w *Worker) run() {
	p := w.pool
	defer p.wg.Done()
	for {
		select {
		case j := <-p.jobs:
			w.exec(j)
		case <-p.quit:
			return
		}
	}
}

func (w *Worker) exec(j *job) {
	defer close(j.done)
	if err := w.pool.region.Acquire(j.ctx); err != nil {
		j.err = err
		return
	}
	defer w.pool.region.Release()
	defer func() {
		if r := recover(); r != nil {
			j.err = fmt.Errorf("%w: %v", ErrPanic, r)
			w.pool.logger.Error("recovered panic in pool worker",
				logger.Worker(w.id), slog.Any("panic", r))
		}
	}()
	j.err = j.fn(j.ctx, w)
}
