// Package dispatchkit is the request-dispatch core of a small web framework
// whose handlers may live in an embedded scripting runtime.
//
// The root package holds no code. The pieces live in subpackages:
//
//   - router: per-method radix routing with {name} and {*name} parameters
//   - signature: handler parameter tables computed once at registration
//   - binder: argument binding and coercion (path, deps, request, form, body, query)
//   - dispatch: the engine turning a routed request into a normalized result
//   - bridge: the exclusive region, the offload pool and cooperative loops
//   - background: tasks that run after the response has been flushed
//   - websocket: the session bridge between a connection and a handler
//   - middleware: before/after/error hooks plus CORS, request ids and logging
//   - server: the HTTP listener tying everything together
//   - pkg/luahost: handlers written in Lua
//
// A minimal server:
//
//	srv := server.New(server.WithAddr(":8000"))
//	_ = srv.Get("/items/{id}", handler.Sync(func(ctx context.Context, a handler.Args) (any, error) {
//		return map[string]any{"id": a.Int("id")}, nil
//	}, handler.P("id", handler.KindInt)))
//	_ = srv.Run(ctx)
package dispatchkit
