// Package bridge runs handler code off the I/O goroutines while respecting the
// execution constraints of embedded interpreters.
//
// Three pieces cooperate:
//
//   - Exclusive is an exclusive execution region. Embedded interpreters such as
//     a gopher-lua state may only be entered by one goroutine at a time; every
//     call into them happens while the region is held.
//
//   - Pool is a bounded set of persistent workers. Work submitted with Run
//     executes on a worker goroutine inside the pool's region, so the goroutine
//     serving the connection only waits on a channel.
//
//   - Loop is the cooperative scheduler owned by a Worker. It is created on the
//     first asynchronous call a worker sees and reused for the worker's lifetime.
//     RunUntilComplete drives a Coroutine step by step and releases the region
//     whenever the coroutine is suspended, so other workers can enter the
//     interpreter in the meantime.
//
// Go code expresses an asynchronous computation with Go:
//
//	co := bridge.Go(func(ctx context.Context, c *bridge.Co) (any, error) {
//		c.Sleep(10 * time.Millisecond)
//		return "done", nil
//	})
//	err := pool.Run(ctx, func(ctx context.Context, w *bridge.Worker) error {
//		v, err := w.Loop().RunUntilComplete(ctx, co)
//		...
//	})
package bridge
