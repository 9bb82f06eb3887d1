// Package handler defines what the dispatcher calls and what handlers return.
//
// A handler declares its parameters statically with Params; the dispatcher
// binds arguments by name from the request and calls it with an Args map. There
// is no reflection involved: the parameter table is the whole contract.
//
//	getUser := handler.Sync(func(ctx context.Context, args handler.Args) (any, error) {
//		id := args.Int("id")
//		if id == 0 {
//			return nil, handler.NewHTTPError(http.StatusNotFound, "user not found")
//		}
//		return map[string]any{"id": id}, nil
//	}, handler.P("id", handler.KindInt))
//
// Asynchronous handlers are built with Async and may suspend through the
// bridge.Co they receive; the dispatcher drives them on the worker's loop.
//
// # Results
//
// A handler may return any value. Tuple carries an explicit status and header
// overrides. Values implementing Renderer (JSON, HTML, PlainText, Redirect,
// File) control their own encoding. Maps, slices, numbers, booleans and
// structs are encoded as JSON; strings are served as HTML when they start with
// '<' and as plain text otherwise.
//
// # Errors
//
// Returning an *HTTPError produces a {"detail": ...} response with its status
// and headers. Any other error is offered to error middleware and otherwise
// becomes a 500.
//
// # Dependencies
//
// A parameter whose Default is a *Dependency is filled by the dependency
// resolver before the handler runs:
//
//	db := handler.Depends(func(ctx context.Context, rc *request.Context) (any, error) {
//		return pool, nil
//	})
//	h := handler.Sync(list, handler.Dep("db", db))
package handler
