package handler_test

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/dispatchkit/background"
	"github.com/dmitrymomot/dispatchkit/bridge"
	"github.com/dmitrymomot/dispatchkit/handler"
	"github.com/dmitrymomot/dispatchkit/request"
)

func TestArgs(t *testing.T) {
	t.Parallel()

	rc := request.New("GET", "/", nil, nil, nil, nil)
	task := background.New()
	file := request.NewUploadFile("a.txt", "", []byte("hi"))
	args := handler.Args{
		"s":       "x",
		"i":       int64(7),
		"f":       1.5,
		"b":       true,
		"m":       map[string]any{"k": "v"},
		"request": rc,
		"task":    task,
		"file":    file,
	}

	assert.Equal(t, "x", args.String("s"))
	assert.Equal(t, int64(7), args.Int("i"))
	assert.Equal(t, int64(1), args.Int("f"))
	assert.InDelta(t, 7.0, args.Float("i"), 0)
	assert.True(t, args.Bool("b"))
	assert.Equal(t, "v", args.Map("m")["k"])
	assert.Same(t, rc, args.Request())
	assert.Same(t, task, args.Task("task"))
	assert.Same(t, file, args.Upload("file"))

	assert.Empty(t, args.String("missing"))
	assert.Zero(t, args.Int("s"))
	assert.False(t, args.Has("missing"))
	_, ok := args.Get("s")
	assert.True(t, ok)
}

func TestSyncAndAsync(t *testing.T) {
	t.Parallel()

	h := handler.Sync(func(_ context.Context, a handler.Args) (any, error) {
		return a.Int("n") * 2, nil
	}, handler.P("n", handler.KindInt))
	require.Len(t, h.Params(), 1)
	out, err := h.Call(context.Background(), handler.Args{"n": int64(21)})
	require.NoError(t, err)
	assert.Equal(t, int64(42), out)

	ah := handler.Async(func(_ context.Context, a handler.Args, co *bridge.Co) (any, error) {
		co.Yield()
		return a.String("name"), nil
	}, handler.P("name", handler.KindString))

	var loop bridge.Loop
	out, err = loop.RunUntilComplete(context.Background(), ah.Start(context.Background(), handler.Args{"name": "go"}))
	require.NoError(t, err)
	assert.Equal(t, "go", out)
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	for name, want := range map[string]handler.Kind{
		"int":            handler.KindInt,
		"integer":        handler.KindInt,
		"str":            handler.KindString,
		"string":         handler.KindString,
		"float":          handler.KindFloat,
		"number":         handler.KindFloat,
		"bool":           handler.KindBool,
		"uuid":           handler.KindUUID,
		"":               handler.KindAny,
		"BackgroundTask": handler.KindBackgroundTask,
		"UploadFile":     handler.KindUploadFile,
	} {
		got, ok := handler.ParseKind(name)
		assert.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}
	_, ok := handler.ParseKind("complex")
	assert.False(t, ok)
	assert.Equal(t, "int", handler.KindInt.String())
}

func TestHTTPError(t *testing.T) {
	t.Parallel()

	err := handler.Errorf(http.StatusTeapot, "no %s", "coffee")
	assert.Equal(t, "no coffee", err.Error())
	assert.Equal(t, http.StatusTeapot, err.StatusCode())

	withHdr := handler.ErrUnauthorized.WithHeaders(map[string]string{"www-authenticate": "Bearer"})
	assert.Equal(t, "Bearer", withHdr.Headers["www-authenticate"])
	assert.Nil(t, handler.ErrUnauthorized.Headers)

	var target *handler.HTTPError
	wrapped := errors.Join(errors.New("ctx"), withHdr)
	require.ErrorAs(t, wrapped, &target)
	assert.Equal(t, http.StatusUnauthorized, target.Status)

	assert.Equal(t, "Not Implemented", handler.NewHTTPError(http.StatusNotImplemented, "").Error())
}

func TestResponses(t *testing.T) {
	t.Parallel()

	t.Run("json", func(t *testing.T) {
		t.Parallel()
		r := handler.JSON(map[string]any{"b": 1, "a": "<x>"}, handler.WithStatus(http.StatusCreated), handler.WithHeader("x-a", "1"))
		body, err := r.Render()
		require.NoError(t, err)
		assert.JSONEq(t, `{"a":"<x>","b":1}`, string(body))
		assert.Equal(t, "application/json", r.ContentType())
		assert.Equal(t, http.StatusCreated, r.StatusCode())
		assert.Equal(t, "1", r.Headers()["x-a"])
	})

	t.Run("html and text", func(t *testing.T) {
		t.Parallel()
		body, err := handler.HTML("<p>hi</p>").Render()
		require.NoError(t, err)
		assert.Equal(t, "<p>hi</p>", string(body))
		assert.Equal(t, "text/html; charset=utf-8", handler.HTML("").ContentType())
		assert.Equal(t, "text/plain; charset=utf-8", handler.PlainText("").ContentType())
	})

	t.Run("redirect", func(t *testing.T) {
		t.Parallel()
		r := handler.Redirect("/login")
		assert.Equal(t, http.StatusFound, r.StatusCode())
		assert.Equal(t, "/login", r.Headers()["location"])

		r = handler.Redirect("/new", handler.WithStatus(http.StatusMovedPermanently))
		assert.Equal(t, http.StatusMovedPermanently, r.StatusCode())
	})

	t.Run("file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "report.csv")
		require.NoError(t, os.WriteFile(path, []byte("a,b"), 0o600))

		r := handler.File(path, "")
		body, err := r.Render()
		require.NoError(t, err)
		assert.Equal(t, "a,b", string(body))
		assert.Equal(t, `attachment; filename="report.csv"`, r.Headers()["content-disposition"])

		_, err = handler.File(filepath.Join(t.TempDir(), "missing"), "x").Render()
		require.ErrorIs(t, err, handler.ErrRender)
	})
}

func TestResolver(t *testing.T) {
	t.Parallel()

	t.Run("shared provider runs once per request", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		db := handler.Depends(func(context.Context, *request.Context) (any, error) {
			return calls.Add(1), nil
		})
		h := handler.Sync(nil, handler.Dep("a", db), handler.Dep("b", db), handler.P("id", handler.KindInt))

		r := handler.NewResolver()
		vals, err := r.Resolve(context.Background(), h, nil)
		require.NoError(t, err)
		assert.Equal(t, int32(1), vals["a"])
		assert.Equal(t, int32(1), vals["b"])
		assert.NotContains(t, vals, "id")

		vals, err = r.Resolve(context.Background(), h, nil)
		require.NoError(t, err)
		assert.Equal(t, int32(2), vals["a"])
	})

	t.Run("uncached provider runs per parameter", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		d := handler.Depends(func(context.Context, *request.Context) (any, error) {
			return calls.Add(1), nil
		}).Uncached()
		h := handler.Sync(nil, handler.Dep("a", d), handler.Dep("b", d))

		vals, err := handler.NewResolver().Resolve(context.Background(), h, nil)
		require.NoError(t, err)
		assert.Equal(t, int32(1), vals["a"])
		assert.Equal(t, int32(2), vals["b"])
	})

	t.Run("provider sees the request", func(t *testing.T) {
		t.Parallel()

		user := handler.Depends(func(_ context.Context, rc *request.Context) (any, error) {
			return rc.Header("X-User"), nil
		})
		rc := request.New("GET", "/", http.Header{"X-User": {"ann"}}, nil, nil, nil)
		vals, err := handler.NewResolver().Resolve(context.Background(), handler.Sync(nil, handler.Dep("user", user)), rc)
		require.NoError(t, err)
		assert.Equal(t, "ann", vals["user"])
	})

	t.Run("overrides", func(t *testing.T) {
		t.Parallel()

		d := handler.Depends(func(context.Context, *request.Context) (any, error) { return "real", nil })
		h := handler.Sync(nil, handler.Dep("svc", d))

		r := handler.NewResolver()
		r.Override(d, func(context.Context, *request.Context) (any, error) { return "fake", nil })
		vals, err := r.Resolve(context.Background(), h, nil)
		require.NoError(t, err)
		assert.Equal(t, "fake", vals["svc"])

		r.ClearOverrides()
		vals, err = r.Resolve(context.Background(), h, nil)
		require.NoError(t, err)
		assert.Equal(t, "real", vals["svc"])
	})

	t.Run("provider error", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("boom")
		d := handler.Depends(func(context.Context, *request.Context) (any, error) { return nil, boom })
		_, err := handler.NewResolver().Resolve(context.Background(), handler.Sync(nil, handler.Dep("x", d)), nil)
		require.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), `"x"`)
	})
}
