package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/dmitrymomot/dispatchkit/bridge"
	"github.com/dmitrymomot/dispatchkit/dispatch"
	"github.com/dmitrymomot/dispatchkit/handler"
	"github.com/dmitrymomot/dispatchkit/pkg/async"
	"github.com/dmitrymomot/dispatchkit/pkg/logger"
	"github.com/dmitrymomot/dispatchkit/request"
	"github.com/dmitrymomot/dispatchkit/signature"
)

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Server", ServerHeader)

	if s.serveWebSocket(w, r) {
		return
	}

	finished := s.metrics.RequestStarted(r.Method)
	// Client disconnects do not cancel handlers.
	ctx := context.WithoutCancel(r.Context())

	in := dispatch.Input{
		Method:   r.Method,
		Path:     r.URL.Path,
		Header:   r.Header,
		RawQuery: r.URL.RawQuery,
	}
	res := s.dispatch(ctx, w, r, in)

	s.write(w, res)
	flushed, resolve := async.Promise[struct{}]()
	s.scheduler.Schedule(res.Task, flushed)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	resolve(struct{}{}, nil)

	finished(res.Status)
}

func (s *Server) dispatch(ctx context.Context, w http.ResponseWriter, r *http.Request, in dispatch.Input) *dispatch.Result {
	if r.Method == http.MethodOptions {
		return s.onPool(ctx, func(ctx context.Context, _ *bridge.Worker) *dispatch.Result {
			return s.engine.Options(ctx, in)
		})
	}

	var sig *signature.Signature
	if m, ok := s.routes.Find(r.Method, r.URL.Path); ok {
		sig, _ = s.sigs.At(m.Index)
		in.PathParams = m.Params
	}
	if sig == nil && s.notFound != nil {
		sig = s.notFound
		in.PathParams = map[string]string{"path": r.URL.Path}
	}

	needsBody := s.engine.Middleware().Len() > 0
	if sig != nil {
		needsBody = s.engine.NeedsBody(sig, r.Header.Get("Content-Type"))
	}
	if needsBody {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.maxBody))
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return dispatch.FromHTTPError(handler.Errorf(http.StatusRequestEntityTooLarge,
				"request body exceeds %d bytes", tooLarge.Limit))
		case err != nil:
			s.log.WarnContext(ctx, "failed to read request body", logger.Path(in.Path), logger.Error(err))
		}
		in.Body = body
	}

	if sig == nil {
		return s.onPool(ctx, func(ctx context.Context, _ *bridge.Worker) *dispatch.Result {
			return s.engine.NotFound(ctx, in)
		})
	}
	return s.onPool(ctx, func(ctx context.Context, wk *bridge.Worker) *dispatch.Result {
		return s.engine.Dispatch(ctx, wk, sig, in)
	})
}

// onPool runs fn on a pool worker inside the exclusive region.
func (s *Server) onPool(ctx context.Context, fn func(context.Context, *bridge.Worker) *dispatch.Result) *dispatch.Result {
	var res *dispatch.Result
	err := s.pool.Run(ctx, func(ctx context.Context, w *bridge.Worker) error {
		res = fn(ctx, w)
		return nil
	})
	switch {
	case errors.Is(err, bridge.ErrPoolClosed):
		return dispatch.FromHTTPError(handler.ErrServiceUnavailable)
	case err != nil:
		s.log.ErrorContext(ctx, "dispatch failed", logger.Error(err))
		return dispatch.Internal(err)
	case res == nil:
		return dispatch.Internal(errors.New("handler produced no result"))
	}
	return res
}

func (s *Server) write(w http.ResponseWriter, res *dispatch.Result) {
	h := w.Header()
	for k, v := range res.Headers {
		h.Set(k, v)
	}
	if res.ContentType != "" {
		h.Set("Content-Type", res.ContentType)
	}
	h.Set("Content-Length", strconv.Itoa(len(res.Body)))
	w.WriteHeader(res.Status)
	if _, err := w.Write(res.Body); err != nil {
		s.log.Debug("failed to write response body", logger.Error(err))
	}
}

// serveWebSocket upgrades r when it targets a websocket route. It reports
// whether the request was handled.
func (s *Server) serveWebSocket(w http.ResponseWriter, r *http.Request) bool {
	if !isUpgrade(r) {
		return false
	}
	h, m, ok := s.lookupWebSocket(r.URL.Path)
	if !ok {
		return false
	}
	rc := request.New(r.Method, r.URL.Path, r.Header, request.ParseQuery(r.URL.RawQuery), m.Params, nil)
	if err := s.ws.Serve(w, r, h, rc); err != nil {
		s.log.Warn("websocket upgrade failed", logger.Path(r.URL.Path), logger.Error(err))
	}
	return true
}
