package luahost

import (
	"context"
	"errors"

	lua "github.com/yuin/gopher-lua"

	"github.com/dmitrymomot/dispatchkit/background"
	"github.com/dmitrymomot/dispatchkit/websocket"
)

const closedMessage = "connection closed"

// session is the userdata payload of a websocket session.
type session struct {
	s *websocket.Session
}

func (h *Host) newTask(L *lua.LState, t *background.Task) lua.LValue {
	ud := L.NewUserData()
	ud.Value = t
	L.SetMetatable(ud, L.GetTypeMetatable(taskType))
	return ud
}

func (h *Host) newSession(L *lua.LState, s *websocket.Session) lua.LValue {
	ud := L.NewUserData()
	ud.Value = &session{s: s}
	L.SetMetatable(ud, L.GetTypeMetatable(sessionType))
	return ud
}

func checkTask(L *lua.LState) *background.Task {
	ud := L.CheckUserData(1)
	t, ok := ud.Value.(*background.Task)
	if !ok {
		L.ArgError(1, "background task expected")
	}
	return t
}

func checkSession(L *lua.LState) *websocket.Session {
	ud := L.CheckUserData(1)
	s, ok := ud.Value.(*session)
	if !ok {
		L.ArgError(1, "websocket expected")
	}
	return s.s
}

// task:add(fn, ...) queues fn to run after the response is sent.
func (h *Host) taskAdd(L *lua.LState) int {
	t := checkTask(L)
	fn := L.CheckFunction(2)
	var args []lua.LValue
	for i := 3; i <= L.GetTop(); i++ {
		args = append(args, L.Get(i))
	}
	t.Add(func(ctx context.Context) error {
		_, err := h.call(ctx, fn, args...)
		return err
	})
	return 0
}

func taskLen(L *lua.LState) int {
	L.Push(lua.LNumber(checkTask(L).Len()))
	return 1
}

func wsSend(L *lua.LState) int {
	if err := checkSession(L).Send(L.CheckString(2)); err != nil {
		return raise(L, err)
	}
	return 0
}

func wsSendJSON(L *lua.LState) int {
	if err := checkSession(L).SendJSON(toGo(L.CheckAny(2))); err != nil {
		return raise(L, err)
	}
	return 0
}

func wsClose(L *lua.LState) int {
	checkSession(L).Close(L.OptInt(2, 0))
	return 0
}

func wsAccept(L *lua.LState) int {
	if err := checkSession(L).Accept(); err != nil {
		return raise(L, err)
	}
	return 0
}

func wsID(L *lua.LState) int {
	L.Push(lua.LString(checkSession(L).ID()))
	return 1
}

func wsState(L *lua.LState) int {
	L.Push(lua.LString(checkSession(L).State().String()))
	return 1
}

// wsPoll returns (msg), (nil, err) or, inside a coroutine with nothing queued,
// suspends and returns (nil, nil, true) once resumed so the caller retries.
func (h *Host) wsPoll(L *lua.LState) int {
	s := checkSession(L)
	if co := h.coroutines[L]; co != nil {
		msg, ok, closed, changed := s.TryRecv()
		switch {
		case ok:
			L.Push(lua.LString(msg))
			return 1
		case closed:
			L.Push(lua.LNil)
			L.Push(lua.LString(closedMessage))
			return 2
		}
		co.wait = changed
		co.resume = []lua.LValue{lua.LNil, lua.LNil, lua.LTrue}
		return L.Yield()
	}

	ctx := L.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	msg, err := s.Recv(ctx)
	if err != nil {
		L.Push(lua.LNil)
		if errors.Is(err, websocket.ErrConnectionClosed) {
			L.Push(lua.LString(closedMessage))
		} else {
			L.Push(lua.LString(err.Error()))
		}
		return 2
	}
	L.Push(lua.LString(msg))
	return 1
}
