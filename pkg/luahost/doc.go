// Package luahost runs request handlers written in Lua.
//
// A Host owns one gopher-lua state. Every call into it happens inside the
// host's exclusive region, which is meant to be the same region the server's
// offload pool runs handlers in:
//
//	host := luahost.New()
//	srv := server.New(server.WithExclusive(host.Exclusive()))
//	if err := host.DoFile(ctx, "app.lua"); err != nil {
//		return err
//	}
//	h, err := host.Handler("get_item", []handler.Param{handler.P("id", handler.KindInt)}, false)
//	...
//	_ = srv.Get("/items/{id}", h)
//
// Routes can also be declared in a YAML manifest and registered in one step
// with LoadManifest and Manifest.Register.
//
// Each call runs on its own Lua thread sharing the globals of the main state,
// so a call parked in sleep or a websocket recv can release the region and
// let other calls proceed. Asynchronous handlers run as Lua coroutines driven
// by the worker loop; sleep and recv suspend them instead of blocking.
//
// # Lua surface
//
// A handler receives one table holding its bound arguments by name and may
// return a body, or body, status and a header table. Globals available to
// scripts:
//
//	sleep(ms)                        suspend (async) or block (sync)
//	abort(status, detail[, headers]) fail the request with an HTTP error
//	json_encode(v), json_decode(s)
//	response.json/html/text(v[, status]), response.redirect(url[, status])
//	log.debug/info/warn/error(msg)
//
// A "request" argument is a table (method, path, headers, query, path_params,
// body, cookies). Background tasks are userdata with add(fn, ...). Uploaded
// files are tables (filename, content_type, size, data). WebSocket sessions
// are userdata with send, send_json, recv, recv_json, close, accept and id.
package luahost
