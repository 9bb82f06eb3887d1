package luahost

import (
	"context"

	lua "github.com/yuin/gopher-lua"

	"github.com/dmitrymomot/dispatchkit/bridge"
	"github.com/dmitrymomot/dispatchkit/handler"
	"github.com/dmitrymomot/dispatchkit/request"
	"github.com/dmitrymomot/dispatchkit/websocket"
)

type luaHandler struct {
	h      *Host
	fn     *lua.LFunction
	params []handler.Param
}

func (lh *luaHandler) Params() []handler.Param { return lh.params }

type syncHandler struct{ *luaHandler }

func (sh syncHandler) Call(ctx context.Context, args handler.Args) (any, error) {
	var out any
	err := sh.h.withThread(ctx, func(th *lua.LState) error {
		rets, err := sh.h.call(ctx, sh.fn, sh.h.args(th, args))
		if err != nil {
			return err
		}
		out, err = result(rets)
		return err
	})
	return out, err
}

type asyncHandler struct{ *luaHandler }

func (ah asyncHandler) Start(_ context.Context, args handler.Args) bridge.Coroutine {
	return ah.h.newCoroutine(ah.fn, func(L *lua.LState) []lua.LValue {
		return []lua.LValue{ah.h.args(L, args)}
	})
}

// Handler returns the global Lua function name as a request handler. The
// function receives one table of bound arguments. When async is set it runs
// as a coroutine, so sleep suspends it instead of blocking the worker.
//
// The handler must run inside the host's region, which is the case when the
// server's pool shares it.
func (h *Host) Handler(name string, params []handler.Param, async bool) (handler.Handler, error) {
	fn, err := h.Function(name)
	if err != nil {
		return nil, err
	}
	lh := &luaHandler{h: h, fn: fn, params: params}
	if async {
		return asyncHandler{lh}, nil
	}
	return syncHandler{lh}, nil
}

// Provider returns the global Lua function name as a dependency provider. The
// function receives the request table, or nil when there is none, and its
// first result is the injected value.
func (h *Host) Provider(name string) (handler.Provider, error) {
	fn, err := h.Function(name)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, rc *request.Context) (any, error) {
		var out any
		err := h.withThread(ctx, func(th *lua.LState) error {
			arg := lua.LValue(lua.LNil)
			if rc != nil {
				arg = h.requestTable(th, rc)
			}
			rets, err := h.call(ctx, fn, arg)
			if err != nil {
				return err
			}
			if len(rets) > 0 {
				out = toGo(rets[0])
			}
			return nil
		})
		return out, err
	}, nil
}

type wsHandler struct {
	h     *Host
	fn    *lua.LFunction
	async bool
}

// Serve implements websocket.Handler.
func (wh wsHandler) Serve(ctx context.Context, w *bridge.Worker, s *websocket.Session) error {
	h := wh.h
	if !wh.async {
		return h.withThread(ctx, func(th *lua.LState) error {
			_, err := h.call(ctx, wh.fn, h.newSession(th, s))
			return err
		})
	}
	co := h.newCoroutine(wh.fn, func(L *lua.LState) []lua.LValue {
		return []lua.LValue{h.newSession(L, s)}
	})
	loop := new(bridge.Loop)
	if w != nil {
		loop = w.Loop()
	}
	_, err := loop.RunUntilComplete(ctx, co)
	return err
}

// WebSocketHandler returns the global Lua function name as a websocket
// handler. The function receives the session userdata.
func (h *Host) WebSocketHandler(name string, async bool) (websocket.Handler, error) {
	fn, err := h.Function(name)
	if err != nil {
		return nil, err
	}
	return wsHandler{h: h, fn: fn, async: async}, nil
}

// withThread gives fn a scratch thread for building argument values.
func (h *Host) withThread(ctx context.Context, fn func(th *lua.LState) error) error {
	if h.closed.Load() {
		return ErrClosed
	}
	return fn(h.thread(ctx))
}
