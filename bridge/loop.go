package bridge

import "context"

// Loop drives coroutines for a single worker. It is not safe for concurrent
// use; each Worker owns exactly one.
type Loop struct {
	region    *Exclusive
	running   bool
	steps     uint64
	completed uint64
}

// RunUntilComplete resumes co until it finishes and returns its result.
//
// The caller must hold the loop's exclusive region. The region stays held
// while co runs and is released while co is suspended on a wait channel.
// If ctx is done while co is suspended the coroutine is abandoned (and
// cancelled if it implements Canceler) and ctx.Err() is returned.
func (l *Loop) RunUntilComplete(ctx context.Context, co Coroutine) (any, error) {
	if l.running {
		return nil, ErrLoopRunning
	}
	l.running = true
	defer func() { l.running = false }()

	for {
		st := co.Resume(ctx)
		l.steps++
		if st.Done {
			l.completed++
			return st.Value, st.Err
		}
		if st.Wait == nil {
			continue
		}

		l.region.Release()
		var err error
		select {
		case <-st.Wait:
		case <-ctx.Done():
			err = ctx.Err()
		}
		// Reacquire unconditionally: the caller releases the region it handed us.
		_ = l.region.Acquire(context.Background())
		if err != nil {
			if c, ok := co.(Canceler); ok {
				c.Cancel()
			}
			return nil, err
		}
	}
}

// Steps returns how many times the loop resumed a coroutine.
func (l *Loop) Steps() uint64 { return l.steps }

// Completed returns how many coroutines ran to completion on this loop.
func (l *Loop) Completed() uint64 { return l.completed }
