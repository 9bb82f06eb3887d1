// Package middleware defines the hook capabilities a dispatch middleware can
// implement and the Chain that runs them.
//
// A middleware implements any subset of BeforeRequest, AfterRequest and
// OnError. Before hooks run in registration order, after hooks in exact
// reverse registration order, and error hooks in registration order until one
// returns a result.
//
// The package also ships the stock middlewares: CORS, ErrorHandler,
// Exceptions, RequestID and Logger.
package middleware
