// Package websocket bridges upgraded connections to handlers running on the
// offload pool.
//
// Bridge.Serve completes the handshake (the 101 response is written before
// Serve returns) and leaves the session running on its own goroutines:
//
//   - a writer draining the outbound queue until a close is requested,
//   - a reader pushing text frames onto the inbound queue until the peer
//     closes or the connection fails,
//   - the handler, invoked once on a pool worker with the Session.
//
// Session.Send never blocks. Session.Recv blocks until a message arrives or
// the inbound side closes, releasing the pool's exclusive region while it
// waits. Asynchronous handlers use RecvAsync to suspend on the worker loop
// instead.
package websocket
