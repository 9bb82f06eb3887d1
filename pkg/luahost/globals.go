package luahost

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dmitrymomot/dispatchkit/handler"
	"github.com/dmitrymomot/dispatchkit/pkg/jsoncodec"
)

const (
	taskType    = "dispatch.task"
	sessionType = "dispatch.ws"
)

// recvSource wraps the Go poll function so that a receive suspended inside a
// coroutine retries after it is resumed.
const recvSource = `
local poll = ...
return function(self)
	while true do
		local msg, err, again = poll(self)
		if not again then
			return msg, err
		end
	end
end
`

func (h *Host) installGlobals() {
	L := h.L
	L.SetGlobal("sleep", L.NewFunction(h.sleep))
	L.SetGlobal("abort", L.NewFunction(abort))
	L.SetGlobal("json_encode", L.NewFunction(jsonEncode))
	L.SetGlobal("json_decode", L.NewFunction(h.jsonDecode))

	L.SetGlobal("response", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"json":     responseJSON,
		"html":     responseText(handler.HTML),
		"text":     responseText(handler.PlainText),
		"redirect": responseRedirect,
	}))
	L.SetGlobal("log", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"debug": h.log(slog.LevelDebug),
		"info":  h.log(slog.LevelInfo),
		"warn":  h.log(slog.LevelWarn),
		"error": h.log(slog.LevelError),
	}))

	task := L.NewTypeMetatable(taskType)
	L.SetField(task, "__index", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"add": h.taskAdd,
		"len": taskLen,
	}))

	ws := L.NewTypeMetatable(sessionType)
	methods := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"send":      wsSend,
		"send_json": wsSendJSON,
		"close":     wsClose,
		"accept":    wsAccept,
		"id":        wsID,
		"state":     wsState,
	})
	recv := h.compileRecv()
	L.SetField(methods, "recv", recv)
	L.SetField(methods, "recv_json", h.compileRecvJSON(recv))
	L.SetField(ws, "__index", methods)
}

func (h *Host) compileRecv() lua.LValue {
	L := h.L
	fn, err := L.LoadString(recvSource)
	if err != nil {
		panic("luahost: compile recv: " + err.Error())
	}
	L.Push(fn)
	L.Push(L.NewFunction(h.wsPoll))
	L.Call(1, 1)
	recv := L.Get(-1)
	L.Pop(1)
	return recv
}

func (h *Host) compileRecvJSON(recv lua.LValue) lua.LValue {
	L := h.L
	fn, err := L.LoadString(`
local recv, decode = ...
return function(self)
	local msg, err = recv(self)
	if msg == nil then
		return nil, err
	end
	return decode(msg)
end
`)
	if err != nil {
		panic("luahost: compile recv_json: " + err.Error())
	}
	L.Push(fn)
	L.Push(recv)
	L.Push(L.GetGlobal("json_decode"))
	L.Call(2, 1)
	v := L.Get(-1)
	L.Pop(1)
	return v
}

// sleep(ms) suspends a coroutine or blocks a synchronous call. A blocked call
// gives up the region until it wakes.
func (h *Host) sleep(L *lua.LState) int {
	d := time.Duration(float64(L.CheckNumber(1)) * float64(time.Millisecond))
	if co := h.coroutines[L]; co != nil {
		done := make(chan struct{})
		time.AfterFunc(d, func() { close(done) })
		co.wait = done
		return L.Yield()
	}

	ctx := L.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	h.region.Release()
	defer func() { _ = h.region.Acquire(context.Background()) }()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
	return 0
}

// abort(status[, detail[, headers]]) raises an HTTP error.
func abort(L *lua.LState) int {
	status := L.CheckInt(1)
	detail := http.StatusText(status)
	switch v := L.Get(2).(type) {
	case lua.LString:
		detail = string(v)
	case *lua.LTable:
		if b, err := jsoncodec.Marshal(toGo(v)); err == nil {
			detail = string(b)
		}
	}
	e := handler.NewHTTPError(status, detail)
	if hdr := stringMap(L.Get(3)); len(hdr) > 0 {
		e = e.WithHeaders(hdr)
	}
	return raise(L, e)
}

func jsonEncode(L *lua.LState) int {
	b, err := jsoncodec.Marshal(toGo(L.CheckAny(1)))
	if err != nil {
		L.RaiseError("json_encode: %s", err.Error())
		return 0
	}
	L.Push(lua.LString(b))
	return 1
}

// json_decode returns the decoded value, or nil and a message.
func (h *Host) jsonDecode(L *lua.LState) int {
	v, err := jsoncodec.Decode([]byte(L.CheckString(1)))
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(h.toLua(L, v))
	return 1
}

func pushResponse(L *lua.LState, r *handler.Response) int {
	ud := L.NewUserData()
	ud.Value = r
	L.Push(ud)
	return 1
}

func statusOption(L *lua.LState, idx int) []handler.ResponseOption {
	status := L.OptInt(idx, 0)
	if status == 0 {
		return nil
	}
	return []handler.ResponseOption{handler.WithStatus(status)}
}

func responseJSON(L *lua.LState) int {
	return pushResponse(L, handler.JSON(toGo(L.Get(1)), statusOption(L, 2)...))
}

func responseText(build func(string, ...handler.ResponseOption) *handler.Response) lua.LGFunction {
	return func(L *lua.LState) int {
		return pushResponse(L, build(L.CheckString(1), statusOption(L, 2)...))
	}
}

func responseRedirect(L *lua.LState) int {
	return pushResponse(L, handler.Redirect(L.CheckString(1), statusOption(L, 2)...))
}

// log.<level>(msg[, fields]) writes through the host logger.
func (h *Host) log(level slog.Level) lua.LGFunction {
	return func(L *lua.LState) int {
		msg := L.CheckString(1)
		var attrs []slog.Attr
		if t, ok := L.Get(2).(*lua.LTable); ok {
			t.ForEach(func(k, v lua.LValue) {
				attrs = append(attrs, slog.Any(k.String(), toGo(v)))
			})
		}
		ctx := L.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		h.logger.LogAttrs(ctx, level, msg, attrs...)
		return 0
	}
}
