package luahost

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/google/uuid"
	lua "github.com/yuin/gopher-lua"

	"github.com/dmitrymomot/dispatchkit/background"
	"github.com/dmitrymomot/dispatchkit/handler"
	"github.com/dmitrymomot/dispatchkit/request"
	"github.com/dmitrymomot/dispatchkit/websocket"
)

// toLua converts a Go value into a Lua value on L.
func (h *Host) toLua(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case lua.LValue:
		return val
	case bool:
		return lua.LBool(val)
	case string:
		return lua.LString(val)
	case []byte:
		return lua.LString(val)
	case int:
		return lua.LNumber(val)
	case int32:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case uint:
		return lua.LNumber(val)
	case uint64:
		return lua.LNumber(val)
	case float32:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return lua.LString(val)
		}
		return lua.LNumber(f)
	case uuid.UUID:
		return lua.LString(val.String())
	case map[string]any:
		t := L.CreateTable(0, len(val))
		for k, item := range val {
			t.RawSetString(k, h.toLua(L, item))
		}
		return t
	case map[string]string:
		t := L.CreateTable(0, len(val))
		for k, item := range val {
			t.RawSetString(k, lua.LString(item))
		}
		return t
	case []any:
		t := L.CreateTable(len(val), 0)
		for i, item := range val {
			t.RawSetInt(i+1, h.toLua(L, item))
		}
		return t
	case []string:
		t := L.CreateTable(len(val), 0)
		for i, item := range val {
			t.RawSetInt(i+1, lua.LString(item))
		}
		return t
	case *request.Context:
		return h.requestTable(L, val)
	case *request.UploadFile:
		return uploadTable(L, val)
	case *background.Task:
		return h.newTask(L, val)
	case *websocket.Session:
		return h.newSession(L, val)
	case fmt.Stringer:
		return lua.LString(val.String())
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		t := L.CreateTable(rv.Len(), 0)
		for i := range rv.Len() {
			t.RawSetInt(i+1, h.toLua(L, rv.Index(i).Interface()))
		}
		return t
	case reflect.Map:
		t := L.CreateTable(0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			t.RawSetString(fmt.Sprint(iter.Key().Interface()), h.toLua(L, iter.Value().Interface()))
		}
		return t
	}
	ud := L.NewUserData()
	ud.Value = v
	return ud
}

// toGo converts a Lua value into plain Go data. Tables with keys 1..n become
// []any, other tables map[string]any; integral numbers become int64.
func toGo(lv lua.LValue) any {
	return toGoVisited(lv, map[*lua.LTable]bool{})
}

func toGoVisited(lv lua.LValue, visited map[*lua.LTable]bool) any {
	switch v := lv.(type) {
	case nil, *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		f := float64(v)
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return int64(f)
		}
		return f
	case lua.LString:
		return string(v)
	case *lua.LTable:
		if visited[v] {
			return nil
		}
		visited[v] = true
		defer delete(visited, v)
		return tableToGo(v, visited)
	case *lua.LUserData:
		if s, ok := v.Value.(*session); ok {
			return s.s
		}
		return v.Value
	}
	return nil
}

func tableToGo(t *lua.LTable, visited map[*lua.LTable]bool) any {
	n := t.Len()
	count := 0
	t.ForEach(func(lua.LValue, lua.LValue) { count++ })
	if n > 0 && n == count {
		out := make([]any, n)
		for i := 1; i <= n; i++ {
			out[i-1] = toGoVisited(t.RawGetInt(i), visited)
		}
		return out
	}

	out := make(map[string]any, count)
	t.ForEach(func(k, v lua.LValue) {
		var key string
		switch kv := k.(type) {
		case lua.LString:
			key = string(kv)
		case lua.LNumber:
			key = strconv.FormatFloat(float64(kv), 'f', -1, 64)
		default:
			key = k.String()
		}
		out[key] = toGoVisited(v, visited)
	})
	return out
}

// stringMap converts a Lua table of string values.
func stringMap(lv lua.LValue) map[string]string {
	t, ok := lv.(*lua.LTable)
	if !ok {
		return nil
	}
	out := make(map[string]string)
	t.ForEach(func(k, v lua.LValue) {
		out[k.String()] = v.String()
	})
	return out
}

// result turns a handler's return values into a dispatch result. Two or
// more values are read as (body, status[, headers]).
func result(rets []lua.LValue) (any, error) {
	switch len(rets) {
	case 0:
		return nil, nil
	case 1:
		return toGo(rets[0]), nil
	}
	status, ok := rets[1].(lua.LNumber)
	if !ok {
		if rets[1] == lua.LNil {
			return toGo(rets[0]), nil
		}
		return nil, fmt.Errorf("%w: status must be a number, got %s", ErrScript, rets[1].Type())
	}
	t := handler.Tuple{Body: toGo(rets[0]), Status: int(status)}
	if len(rets) > 2 {
		t.Headers = stringMap(rets[2])
	}
	return t, nil
}

// args builds the table a handler receives.
func (h *Host) args(L *lua.LState, args handler.Args) *lua.LTable {
	t := L.CreateTable(0, len(args))
	for k, v := range args {
		t.RawSetString(k, h.toLua(L, v))
	}
	return t
}

func (h *Host) requestTable(L *lua.LState, rc *request.Context) *lua.LTable {
	t := L.CreateTable(0, 8)
	t.RawSetString("method", lua.LString(rc.Method()))
	t.RawSetString("path", lua.LString(rc.Path()))
	t.RawSetString("headers", h.toLua(L, flattenHeader(rc.Headers())))
	t.RawSetString("query", h.toLua(L, rc.Query()))
	t.RawSetString("path_params", h.toLua(L, rc.PathParams()))
	t.RawSetString("cookies", h.toLua(L, rc.Cookies()))
	t.RawSetString("content_type", lua.LString(rc.ContentType()))
	t.RawSetString("body", lua.LString(rc.Body()))
	return t
}

// flattenHeader lower-cases names and keeps the first value of each.
func flattenHeader(hdr http.Header) map[string]string {
	out := make(map[string]string, len(hdr))
	for k, v := range hdr {
		if len(v) > 0 {
			out[strings.ToLower(k)] = v[0]
		}
	}
	return out
}

func uploadTable(L *lua.LState, f *request.UploadFile) *lua.LTable {
	t := L.CreateTable(0, 4)
	t.RawSetString("filename", lua.LString(f.Filename))
	t.RawSetString("content_type", lua.LString(f.ContentType))
	t.RawSetString("size", lua.LNumber(f.Size))
	t.RawSetString("data", lua.LString(f.Read()))
	return t
}
