// Package signature precomputes, once per route, everything the dispatcher
// needs to know about a handler: parameter names and kinds, whether it is
// asynchronous, whether it has injected dependencies, its body schema and
// which dependency resolver to call.
//
// Signatures are built at startup and stored in a Cache addressed by the
// route index returned by the router, so the request path never inspects a
// handler.
package signature
