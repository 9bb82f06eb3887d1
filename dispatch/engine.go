package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/dispatchkit/binder"
	"github.com/dmitrymomot/dispatchkit/bridge"
	"github.com/dmitrymomot/dispatchkit/handler"
	"github.com/dmitrymomot/dispatchkit/middleware"
	"github.com/dmitrymomot/dispatchkit/pkg/logger"
	"github.com/dmitrymomot/dispatchkit/request"
	"github.com/dmitrymomot/dispatchkit/schema"
	"github.com/dmitrymomot/dispatchkit/signature"
)

// Input is the part of an HTTP request the engine works from.
type Input struct {
	Method     string
	Path       string
	Header     http.Header
	RawQuery   string
	PathParams map[string]string
	// Body is nil unless the caller read it; see Engine.NeedsBody.
	Body []byte
}

// Engine dispatches requests to handlers. It is safe for concurrent use once
// configured.
type Engine struct {
	chain     *middleware.Chain
	mode      StringMode
	maxMemory int64
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithMiddleware sets the hook chain.
func WithMiddleware(c *middleware.Chain) Option {
	return func(e *Engine) { e.chain = c }
}

// WithStringMode selects how string results are encoded.
func WithStringMode(m StringMode) Option {
	return func(e *Engine) { e.mode = m }
}

// WithMaxMultipartMemory bounds the in-memory size of parsed multipart
// bodies. Panics if n <= 0.
func WithMaxMultipartMemory(n int64) Option {
	if n <= 0 {
		panic("dispatch.WithMaxMultipartMemory: limit must be > 0")
	}
	return func(e *Engine) { e.maxMemory = n }
}

// WithLogger sets the logger for unhandled errors.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New returns an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		maxMemory: request.DefaultMaxMemory,
		logger:    logger.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Middleware returns the engine's hook chain, which may be nil.
func (e *Engine) Middleware() *middleware.Chain { return e.chain }

// StringMode returns the configured string encoding.
func (e *Engine) StringMode() StringMode { return e.mode }

// NeedsContext reports whether a request.Context must be built for sig.
func (e *Engine) NeedsContext(sig *signature.Signature) bool {
	return e.chain.Len() > 0 || sig.WantsRequest()
}

// NeedsBody reports whether the caller must read the request body for sig.
func (e *Engine) NeedsBody(sig *signature.Signature, contentType string) bool {
	return sig.WantsBody() || e.NeedsContext(sig) || request.IsMultipart(contentType)
}

// Dispatch runs sig's handler for in. w may be nil outside a pool, in which
// case asynchronous handlers run on a throwaway loop.
func (e *Engine) Dispatch(ctx context.Context, w *bridge.Worker, sig *signature.Signature, in Input) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: %v", bridge.ErrPanic, r)
			e.logger.ErrorContext(ctx, "recovered panic in dispatch", logger.Method(in.Method), logger.Path(in.Path), logger.Error(err))
			res = Internal(err)
		}
	}()

	var rc *request.Context
	if e.NeedsContext(sig) {
		rc = request.New(in.Method, in.Path, in.Header, request.ParseQuery(in.RawQuery), in.PathParams, in.Body)
		next, err := e.chain.Before(ctx, rc)
		if err != nil {
			return e.fail(ctx, next, err)
		}
		rc = next
		ctx = request.NewContext(ctx, rc)
	}

	bound, err := binder.Bind(ctx, sig, e.bindInput(sig, in, rc))
	if err != nil {
		if ve := schema.ExtractValidationErrors(err); ve != nil {
			return ValidationFailed(ve)
		}
		return e.fail(ctx, rc, err)
	}

	out, err := e.invoke(ctx, w, sig, bound.Args)
	if err != nil {
		return e.fail(ctx, rc, err)
	}

	out, err = e.chain.After(ctx, rc, out)
	if err != nil {
		return e.fail(ctx, rc, err)
	}
	res, err = Normalize(out, e.mode)
	if err != nil {
		return e.translate(ctx, err)
	}
	res.Task = bound.Task
	return res
}

// Options answers an OPTIONS request without routing: only the after hooks
// run, over an empty 200 result.
func (e *Engine) Options(ctx context.Context, in Input) *Result {
	rc := request.New(in.Method, in.Path, in.Header, request.ParseQuery(in.RawQuery), nil, nil)
	out, err := e.chain.After(request.NewContext(ctx, rc), rc, handler.Pair("", http.StatusOK))
	if err != nil {
		return e.translate(ctx, err)
	}
	res, err := Normalize(out, StringsAsText)
	if err != nil {
		return e.translate(ctx, err)
	}
	res.ContentType = "text/plain"
	return res
}

// NotFound answers an unmatched request when no not-found handler exists.
// Error hooks see handler.ErrNotFound and may supply their own result.
func (e *Engine) NotFound(ctx context.Context, in Input) *Result {
	if e.chain.Len() == 0 {
		return NotFound()
	}
	rc := request.New(in.Method, in.Path, in.Header, request.ParseQuery(in.RawQuery), nil, in.Body)
	ctx = request.NewContext(ctx, rc)
	if out, ok := e.chain.OnError(ctx, rc, handler.ErrNotFound); ok {
		return e.finish(ctx, rc, out)
	}
	return NotFound()
}

func (e *Engine) bindInput(sig *signature.Signature, in Input, rc *request.Context) binder.Input {
	bi := binder.Input{
		PathParams:  in.PathParams,
		ContentType: in.Header.Get("Content-Type"),
		Body:        in.Body,
		Request:     rc,
	}
	if rc != nil {
		bi.PathParams = rc.PathParams()
		bi.Query = rc.Query()
		bi.ContentType = rc.Header("Content-Type")
		bi.Body = rc.Body()
	} else if in.RawQuery != "" && len(sig.Names) > 0 {
		bi.Query = request.ParseQuery(in.RawQuery)
	}
	if request.IsMultipart(bi.ContentType) {
		form, err := request.ParseMultipart(bi.ContentType, bi.Body, e.maxMemory)
		if err != nil {
			e.logger.Debug("ignoring malformed multipart body", logger.Error(err))
		} else {
			bi.Form = form
		}
	}
	return bi
}

func (e *Engine) invoke(ctx context.Context, w *bridge.Worker, sig *signature.Signature, args handler.Args) (any, error) {
	if !sig.Async {
		return sig.Caller().Call(ctx, args)
	}
	loop := new(bridge.Loop)
	if w != nil {
		loop = w.Loop()
	}
	return loop.RunUntilComplete(ctx, sig.Starter().Start(ctx, args))
}

// fail runs the error hooks. A hook result goes through the after hooks like
// a handler result; otherwise err is translated.
func (e *Engine) fail(ctx context.Context, rc *request.Context, err error) *Result {
	if out, ok := e.chain.OnError(ctx, rc, err); ok {
		return e.finish(ctx, rc, out)
	}
	return e.translate(ctx, err)
}

func (e *Engine) finish(ctx context.Context, rc *request.Context, out any) *Result {
	out, err := e.chain.After(ctx, rc, out)
	if err != nil {
		return e.translate(ctx, err)
	}
	res, err := Normalize(out, e.mode)
	if err != nil {
		return e.translate(ctx, err)
	}
	return res
}

func (e *Engine) translate(ctx context.Context, err error) *Result {
	var httpErr *handler.HTTPError
	if errors.As(err, &httpErr) {
		return FromHTTPError(httpErr)
	}
	e.logger.ErrorContext(ctx, "unhandled handler error", logger.Error(err))
	return Internal(err)
}
