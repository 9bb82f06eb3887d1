package dispatch_test

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/dispatchkit/bridge"
	"github.com/dmitrymomot/dispatchkit/dispatch"
	"github.com/dmitrymomot/dispatchkit/handler"
	"github.com/dmitrymomot/dispatchkit/middleware"
	"github.com/dmitrymomot/dispatchkit/request"
	"github.com/dmitrymomot/dispatchkit/schema"
	"github.com/dmitrymomot/dispatchkit/signature"
)

func mustSig(t *testing.T, h handler.Handler) *signature.Signature {
	t.Helper()
	sig, err := signature.NewBuilder().Build(h)
	require.NoError(t, err)
	return sig
}

func mustChain(t *testing.T, mws ...any) *middleware.Chain {
	t.Helper()
	c, err := middleware.NewChain(mws...)
	require.NoError(t, err)
	return c
}

func jsonInput(path string, body string) dispatch.Input {
	return dispatch.Input{
		Method: http.MethodPost,
		Path:   path,
		Header: http.Header{"Content-Type": {"application/json"}},
		Body:   []byte(body),
	}
}

func TestDispatchBindsAndEncodes(t *testing.T) {
	t.Parallel()

	sig := mustSig(t, handler.Sync(func(_ context.Context, a handler.Args) (any, error) {
		if a.Request() != nil {
			return nil, errors.New("context built without need")
		}
		return map[string]any{"id": a.Int("id"), "page": a.Int("page"), "q": a.String("q")}, nil
	}, handler.P("id", handler.KindInt), handler.P("page", handler.KindInt), handler.P("q", handler.KindString).Optional("none")))

	e := dispatch.New()
	assert.False(t, e.NeedsContext(sig))
	assert.False(t, e.NeedsBody(sig, "application/json"))
	assert.True(t, e.NeedsBody(sig, "multipart/form-data; boundary=x"))

	res := e.Dispatch(context.Background(), nil, sig, dispatch.Input{
		Method:     http.MethodGet,
		Path:       "/items/9",
		RawQuery:   "page=2",
		PathParams: map[string]string{"id": "9"},
	})
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, dispatch.ContentTypeJSON, res.ContentType)
	assert.JSONEq(t, `{"id":9,"page":2,"q":"none"}`, string(res.Body))
	assert.Nil(t, res.Task)
}

func TestDispatchValidationFailure(t *testing.T) {
	t.Parallel()

	called := false
	afterRan := false
	user := schema.NewObject("User", schema.String("name"), schema.Int("age"))
	sig := mustSig(t, handler.Sync(func(context.Context, handler.Args) (any, error) {
		called = true
		return "ok", nil
	}, handler.Body(user)))

	e := dispatch.New(dispatch.WithMiddleware(mustChain(t, middleware.AfterFunc(
		func(_ context.Context, _ *request.Context, r any) (any, error) {
			afterRan = true
			return r, nil
		}))))
	res := e.Dispatch(context.Background(), nil, sig, jsonInput("/users", `{"age":"x"}`))

	assert.Equal(t, http.StatusUnprocessableEntity, res.Status)
	assert.False(t, called)
	assert.False(t, afterRan)
	assert.Contains(t, string(res.Body), `"error":"Validation failed"`)
	assert.Contains(t, string(res.Body), `"missing"`)
	assert.Contains(t, string(res.Body), `"int_parsing"`)
}

func TestDispatchErrors(t *testing.T) {
	t.Parallel()

	t.Run("http error", func(t *testing.T) {
		t.Parallel()
		sig := mustSig(t, handler.Sync(func(context.Context, handler.Args) (any, error) {
			return nil, handler.Errorf(http.StatusPaymentRequired, "pay up").WithHeaders(map[string]string{"x-plan": "free"})
		}))
		res := dispatch.New().Dispatch(context.Background(), nil, sig, dispatch.Input{Method: "GET", Path: "/"})
		assert.Equal(t, http.StatusPaymentRequired, res.Status)
		assert.JSONEq(t, `{"detail":"pay up"}`, string(res.Body))
		assert.Equal(t, "free", res.Headers["x-plan"])
	})

	t.Run("unhandled", func(t *testing.T) {
		t.Parallel()
		sig := mustSig(t, handler.Sync(func(context.Context, handler.Args) (any, error) {
			return nil, errors.New("db down")
		}))
		res := dispatch.New().Dispatch(context.Background(), nil, sig, dispatch.Input{Method: "GET", Path: "/"})
		assert.Equal(t, http.StatusInternalServerError, res.Status)
		assert.JSONEq(t, `{"error":"Internal Server Error","detail":"db down"}`, string(res.Body))
	})

	t.Run("panic", func(t *testing.T) {
		t.Parallel()
		sig := mustSig(t, handler.Sync(func(context.Context, handler.Args) (any, error) {
			panic("kaboom")
		}))
		res := dispatch.New().Dispatch(context.Background(), nil, sig, dispatch.Input{Method: "GET", Path: "/"})
		assert.Equal(t, http.StatusInternalServerError, res.Status)
		assert.Contains(t, string(res.Body), "kaboom")
	})

	t.Run("path coercion failure", func(t *testing.T) {
		t.Parallel()
		sig := mustSig(t, handler.Sync(func(context.Context, handler.Args) (any, error) {
			return "unreachable", nil
		}, handler.P("id", handler.KindInt)))
		res := dispatch.New().Dispatch(context.Background(), nil, sig, dispatch.Input{
			Method: "GET", Path: "/items/x", PathParams: map[string]string{"id": "x"},
		})
		assert.Equal(t, http.StatusInternalServerError, res.Status)
	})

	t.Run("on_error result flows through after hooks", func(t *testing.T) {
		t.Parallel()
		sig := mustSig(t, handler.Sync(func(context.Context, handler.Args) (any, error) {
			return nil, errors.New("boom")
		}))
		e := dispatch.New(dispatch.WithMiddleware(mustChain(t,
			middleware.NewCORS(middleware.CORSConfig{}),
			middleware.ErrorHandler{},
		)))
		res := e.Dispatch(context.Background(), nil, sig, dispatch.Input{Method: "GET", Path: "/"})
		assert.Equal(t, http.StatusInternalServerError, res.Status)
		assert.Equal(t, "*", res.Headers["access-control-allow-origin"])
		assert.Contains(t, string(res.Body), "An unexpected error occurred")
	})

	t.Run("http error skips after hooks", func(t *testing.T) {
		t.Parallel()
		sig := mustSig(t, handler.Sync(func(context.Context, handler.Args) (any, error) {
			return nil, handler.ErrForbidden
		}))
		e := dispatch.New(dispatch.WithMiddleware(mustChain(t, middleware.NewCORS(middleware.CORSConfig{}))))
		res := e.Dispatch(context.Background(), nil, sig, dispatch.Input{Method: "GET", Path: "/"})
		assert.Equal(t, http.StatusForbidden, res.Status)
		assert.NotContains(t, res.Headers, "access-control-allow-origin")
	})

	t.Run("before hook error is a handler failure", func(t *testing.T) {
		t.Parallel()
		called := false
		sig := mustSig(t, handler.Sync(func(context.Context, handler.Args) (any, error) {
			called = true
			return nil, nil
		}))
		e := dispatch.New(dispatch.WithMiddleware(mustChain(t, middleware.BeforeFunc(
			func(context.Context, *request.Context) (*request.Context, error) {
				return nil, handler.ErrUnauthorized
			}))))
		res := e.Dispatch(context.Background(), nil, sig, dispatch.Input{Method: "GET", Path: "/"})
		assert.Equal(t, http.StatusUnauthorized, res.Status)
		assert.False(t, called)
	})

	t.Run("after hook error is a failure", func(t *testing.T) {
		t.Parallel()
		sig := mustSig(t, handler.Sync(func(context.Context, handler.Args) (any, error) { return "ok", nil }))
		e := dispatch.New(dispatch.WithMiddleware(mustChain(t, middleware.AfterFunc(
			func(context.Context, *request.Context, any) (any, error) {
				return nil, handler.ErrConflict
			}))))
		res := e.Dispatch(context.Background(), nil, sig, dispatch.Input{Method: "GET", Path: "/"})
		assert.Equal(t, http.StatusConflict, res.Status)
	})
}

func TestDispatchMiddlewareSeesAndReplacesContext(t *testing.T) {
	t.Parallel()

	sig := mustSig(t, handler.Sync(func(ctx context.Context, a handler.Args) (any, error) {
		rc := a.Request()
		return map[string]any{
			"user":    rc.Header("X-User"),
			"body":    a["body"],
			"carried": request.FromContext(ctx) == rc,
		}, nil
	}, handler.Request(), handler.Body(nil)))

	e := dispatch.New(dispatch.WithMiddleware(mustChain(t, middleware.BeforeFunc(
		func(_ context.Context, rc *request.Context) (*request.Context, error) {
			return rc.WithHeader("X-User", "ann").WithBody([]byte(`{"rewritten":true}`)), nil
		}))))
	in := jsonInput("/", `{"rewritten":false}`)
	res := e.Dispatch(context.Background(), nil, sig, in)
	require.Equal(t, http.StatusOK, res.Status, string(res.Body))
	assert.JSONEq(t, `{"user":"ann","body":{"rewritten":true},"carried":true}`, string(res.Body))
}

func TestDispatchAfterHooksReplaceResult(t *testing.T) {
	t.Parallel()

	sig := mustSig(t, handler.Sync(func(context.Context, handler.Args) (any, error) { return "plain", nil }))
	e := dispatch.New(dispatch.WithMiddleware(mustChain(t,
		middleware.AfterFunc(func(_ context.Context, _ *request.Context, r any) (any, error) {
			return handler.Pair(r.(map[string]any), http.StatusAccepted), nil
		}),
		middleware.AfterFunc(func(_ context.Context, _ *request.Context, r any) (any, error) {
			return map[string]any{"wrapped": r}, nil
		}),
	)))
	res := e.Dispatch(context.Background(), nil, sig, dispatch.Input{Method: "GET", Path: "/"})
	assert.Equal(t, http.StatusAccepted, res.Status)
	assert.JSONEq(t, `{"wrapped":"plain"}`, string(res.Body))
}

func TestDispatchStrictStrings(t *testing.T) {
	t.Parallel()

	sig := mustSig(t, handler.Sync(func(context.Context, handler.Args) (any, error) { return "<b>", nil }))
	res := dispatch.New(dispatch.WithStringMode(dispatch.StringsAsJSON)).
		Dispatch(context.Background(), nil, sig, dispatch.Input{Method: "GET", Path: "/"})
	assert.Equal(t, dispatch.ContentTypeJSON, res.ContentType)
	assert.Equal(t, `"<b>"`, string(res.Body))
}

func TestDispatchBackgroundTask(t *testing.T) {
	t.Parallel()

	ok := mustSig(t, handler.Sync(func(_ context.Context, a handler.Args) (any, error) {
		a.Task("tasks").Add(func(context.Context) error { return nil })
		return "queued", nil
	}, handler.Task("tasks")))
	res := dispatch.New().Dispatch(context.Background(), nil, ok, dispatch.Input{Method: "POST", Path: "/"})
	require.NotNil(t, res.Task)
	assert.Equal(t, 1, res.Task.Len())

	failing := mustSig(t, handler.Sync(func(_ context.Context, a handler.Args) (any, error) {
		a.Task("tasks").Add(func(context.Context) error { return nil })
		return nil, handler.ErrBadRequest
	}, handler.Task("tasks")))
	res = dispatch.New().Dispatch(context.Background(), nil, failing, dispatch.Input{Method: "POST", Path: "/"})
	assert.Nil(t, res.Task)
}

func TestDispatchMultipartUpload(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("title", "cat"))
	fw, err := mw.CreateFormFile("photo", "cat.png")
	require.NoError(t, err)
	_, err = fw.Write([]byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	sig := mustSig(t, handler.Sync(func(_ context.Context, a handler.Args) (any, error) {
		f := a.Upload("photo")
		return map[string]any{"title": a.String("title"), "name": f.Filename, "size": f.Size}, nil
	}, handler.P("title", handler.KindAny), handler.Upload("photo")))

	res := dispatch.New().Dispatch(context.Background(), nil, sig, dispatch.Input{
		Method: http.MethodPost,
		Path:   "/upload",
		Header: http.Header{"Content-Type": {mw.FormDataContentType()}},
		Body:   buf.Bytes(),
	})
	require.Equal(t, http.StatusOK, res.Status, string(res.Body))
	assert.JSONEq(t, `{"title":"cat","name":"cat.png","size":9}`, string(res.Body))
}

func TestDispatchAsyncOnWorker(t *testing.T) {
	t.Parallel()

	sig := mustSig(t, handler.Async(func(_ context.Context, a handler.Args, co *bridge.Co) (any, error) {
		v, err := co.Await(func(context.Context) (any, error) { return a.Int("n") + 1, nil })
		if err != nil {
			return nil, err
		}
		return map[string]any{"n": v}, nil
	}, handler.P("n", handler.KindInt)))

	pool := bridge.NewPool(bridge.WithSize(1), bridge.WithExclusive(bridge.NewExclusive()))
	t.Cleanup(pool.Close)

	e := dispatch.New()
	for i := range 3 {
		var res *dispatch.Result
		err := pool.Run(context.Background(), func(ctx context.Context, w *bridge.Worker) error {
			res = e.Dispatch(ctx, w, sig, dispatch.Input{Method: "GET", Path: "/", RawQuery: "n=41"})
			return nil
		})
		require.NoError(t, err, i)
		assert.JSONEq(t, `{"n":42}`, string(res.Body))
	}
	assert.Equal(t, 1, pool.LoopsCreated())
}

func TestOptions(t *testing.T) {
	t.Parallel()

	e := dispatch.New(dispatch.WithMiddleware(mustChain(t, middleware.NewCORS(middleware.CORSConfig{}))))
	res := e.Options(context.Background(), dispatch.Input{Method: http.MethodOptions, Path: "/anything"})
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "text/plain", res.ContentType)
	assert.Empty(t, res.Body)
	assert.Equal(t, "*", res.Headers["access-control-allow-origin"])

	res = dispatch.New().Options(context.Background(), dispatch.Input{Method: http.MethodOptions, Path: "/"})
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Empty(t, res.Headers)
}

func TestNotFound(t *testing.T) {
	t.Parallel()

	res := dispatch.New().NotFound(context.Background(), dispatch.Input{Method: "GET", Path: "/nope"})
	assert.Equal(t, http.StatusNotFound, res.Status)

	ex := middleware.NewExceptions().Status(http.StatusNotFound, func(_ context.Context, rc *request.Context, _ error) any {
		return handler.Pair(map[string]any{"missing": rc.Path()}, http.StatusNotFound)
	})
	res = dispatch.New(dispatch.WithMiddleware(mustChain(t, ex))).
		NotFound(context.Background(), dispatch.Input{Method: "GET", Path: "/nope"})
	assert.Equal(t, http.StatusNotFound, res.Status)
	assert.JSONEq(t, `{"missing":"/nope"}`, string(res.Body))
}
