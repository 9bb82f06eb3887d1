// Package background runs work after a response has been sent.
//
// A handler receives a Task, adds functions to it and returns. Once the
// response is written and flushed, the Scheduler executes the task on the
// offload pool. Task functions run in the order they were added; their errors
// and panics are logged and never reach the client.
package background
