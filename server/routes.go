package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dmitrymomot/dispatchkit/bridge"
	"github.com/dmitrymomot/dispatchkit/handler"
	"github.com/dmitrymomot/dispatchkit/router"
	"github.com/dmitrymomot/dispatchkit/websocket"
)

// AddRoute registers h for method and pattern. Patterns use "{name}" for a
// segment and a trailing "{*name}" for the rest of the path.
func (s *Server) AddRoute(method, pattern string, h handler.Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrRunning
	}

	sig, err := s.builder.Build(h)
	if err != nil {
		return errors.Join(ErrInvalidRoute, err)
	}
	idx, err := s.routes.Insert(method, pattern)
	if err != nil {
		return errors.Join(ErrInvalidRoute, err)
	}
	if err := s.sigs.AddAt(idx, sig); err != nil {
		return errors.Join(ErrInvalidRoute, err)
	}
	return nil
}

// Get registers h for GET.
func (s *Server) Get(pattern string, h handler.Handler) error {
	return s.AddRoute(http.MethodGet, pattern, h)
}

// Post registers h for POST.
func (s *Server) Post(pattern string, h handler.Handler) error {
	return s.AddRoute(http.MethodPost, pattern, h)
}

// Put registers h for PUT.
func (s *Server) Put(pattern string, h handler.Handler) error {
	return s.AddRoute(http.MethodPut, pattern, h)
}

// Patch registers h for PATCH.
func (s *Server) Patch(pattern string, h handler.Handler) error {
	return s.AddRoute(http.MethodPatch, pattern, h)
}

// Delete registers h for DELETE.
func (s *Server) Delete(pattern string, h handler.Handler) error {
	return s.AddRoute(http.MethodDelete, pattern, h)
}

// WebSocket registers h for upgrade requests on pattern. Path parameters are
// available through Session.Request.
func (s *Server) WebSocket(pattern string, h websocket.Handler) error {
	if h == nil {
		return fmt.Errorf("%w: nil websocket handler", ErrInvalidRoute)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrRunning
	}

	idx, err := s.wsRoutes.Insert(http.MethodGet, pattern)
	if err != nil {
		return errors.Join(ErrInvalidRoute, err)
	}
	if idx != len(s.wsHandler) {
		return fmt.Errorf("%w: websocket index %d out of step", ErrInvalidRoute, idx)
	}
	s.wsHandler = append(s.wsHandler, h)
	return nil
}

// MountFunc serves the remainder of a mounted path.
type MountFunc func(ctx context.Context, filePath string) (any, error)

// Mount serves every GET under prefix with fn, passing the path below prefix.
func (s *Server) Mount(prefix string, fn MountFunc) error {
	if fn == nil {
		return fmt.Errorf("%w: nil mount handler", ErrInvalidRoute)
	}
	h := handler.Sync(func(ctx context.Context, args handler.Args) (any, error) {
		return fn(ctx, args.String("file_path"))
	}, handler.P("file_path", handler.KindString).Optional(""))
	return s.AddRoute(http.MethodGet, strings.TrimRight(prefix, "/")+"/{*file_path}", h)
}

// NotFound replaces the default 404 response. h is dispatched like a route
// with the single path parameter "path" holding the request path.
func (s *Server) NotFound(h handler.Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrRunning
	}
	sig, err := s.builder.Build(h)
	if err != nil {
		return errors.Join(ErrInvalidRoute, err)
	}
	s.notFound = sig
	return nil
}

// Use appends middleware hooks. mw must implement at least one of
// middleware.BeforeRequest, middleware.AfterRequest or middleware.OnError.
func (s *Server) Use(mw any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrRunning
	}
	return s.chain.Use(mw)
}

type hook struct {
	h handler.Handler
}

// OnStartup registers h to run on the pool before the listener opens. A
// failing startup hook aborts Run with ErrStart.
func (s *Server) OnStartup(h handler.Handler) error {
	return s.addHook(&s.startup, h)
}

// OnShutdown registers h to run after in-flight requests have finished.
func (s *Server) OnShutdown(h handler.Handler) error {
	return s.addHook(&s.shutdown, h)
}

func (s *Server) addHook(hooks *[]hook, h handler.Handler) error {
	switch h.(type) {
	case handler.Caller, handler.Starter:
	default:
		return handler.ErrNotCallable
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrRunning
	}
	*hooks = append(*hooks, hook{h: h})
	return nil
}

// runHooks runs hooks in registration order and stops at the first error.
func (s *Server) runHooks(ctx context.Context, hooks []hook) error {
	for _, hk := range hooks {
		err := s.pool.Run(context.WithoutCancel(ctx), func(ctx context.Context, w *bridge.Worker) error {
			switch h := hk.h.(type) {
			case handler.Caller:
				_, err := h.Call(ctx, handler.Args{})
				return err
			case handler.Starter:
				_, err := w.Loop().RunUntilComplete(ctx, h.Start(ctx, handler.Args{}))
				return err
			}
			return handler.ErrNotCallable
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// lookupWebSocket returns the websocket handler registered for path.
func (s *Server) lookupWebSocket(path string) (websocket.Handler, router.RouteMatch, bool) {
	m, ok := s.wsRoutes.Find(http.MethodGet, path)
	if !ok || m.Index >= len(s.wsHandler) {
		return nil, m, false
	}
	return s.wsHandler[m.Index], m, true
}

func isUpgrade(r *http.Request) bool { return websocket.IsUpgrade(r) }
