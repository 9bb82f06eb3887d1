// Package dispatch turns a matched request into a wire-ready Result.
//
// For each request the Engine builds a request.Context when middleware is
// registered or the handler asks for "request", runs the before hooks, binds
// arguments, invokes the handler (driving asynchronous handlers on the
// worker's loop), runs after or error hooks and normalizes the outcome into a
// body, content type, status and headers.
//
// Dispatch never fails: validation errors become 422, HTTP errors their own
// status and everything else, panics included, 500.
package dispatch
