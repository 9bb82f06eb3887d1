// Package server terminates HTTP and WebSocket connections and feeds them
// through the dispatch engine.
//
// A Server owns the route table, the signature cache, the offload pool with
// its exclusive region, the background scheduler and the websocket bridge.
// Routes, websocket routes, middleware and hooks are registered before Run;
// the tables are read-only afterwards.
//
//	srv := server.New(server.WithAddr(":8000"), server.WithLogger(log))
//	_ = srv.AddRoute(http.MethodGet, "/items/{id}", handler.Sync(getItem, handler.P("id", handler.KindInt)))
//	if err := srv.Run(ctx); err != nil {
//		log.Error("server stopped", logger.Error(err))
//	}
//
// Run blocks until ctx is cancelled or the process receives SIGINT or
// SIGTERM. Shutdown stops accepting connections, lets in-flight requests
// finish, closes websocket sessions, runs the shutdown hooks, waits for
// background tasks and finally stops the pool.
package server
