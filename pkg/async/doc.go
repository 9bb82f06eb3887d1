// Package async provides a generic Future for values that become available
// later.
//
// A Future is obtained either from Async, which runs a function on its own
// goroutine, or from Promise, which hands the completion to the caller:
//
//	flushed, resolve := async.Promise[struct{}]()
//	go func() {
//		writeResponse()
//		resolve(struct{}{}, nil)
//	}()
//	if _, err := flushed.AwaitWithTimeout(time.Second); err != nil {
//		// async.ErrTimeout
//	}
//
// Completion happens exactly once; later resolve calls are ignored.
package async
