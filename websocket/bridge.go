package websocket

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/dispatchkit/bridge"
	"github.com/dmitrymomot/dispatchkit/pkg/logger"
	"github.com/dmitrymomot/dispatchkit/request"
)

// Handler serves one session on a pool worker. The session is torn down when
// Serve returns.
type Handler interface {
	Serve(ctx context.Context, w *bridge.Worker, s *Session) error
}

// Func is a synchronous session handler.
type Func func(ctx context.Context, s *Session) error

func (f Func) Serve(ctx context.Context, _ *bridge.Worker, s *Session) error {
	return f(ctx, s)
}

// AsyncFunc is an asynchronous session handler driven by the worker's loop.
type AsyncFunc func(ctx context.Context, s *Session, co *bridge.Co) error

func (f AsyncFunc) Serve(ctx context.Context, w *bridge.Worker, s *Session) error {
	co := bridge.Go(func(ctx context.Context, co *bridge.Co) (any, error) {
		return nil, f(ctx, s, co)
	})
	_, err := w.Loop().RunUntilComplete(ctx, co)
	return err
}

// IsUpgrade reports whether r asks for a websocket upgrade.
func IsUpgrade(r *http.Request) bool {
	return websocket.IsWebSocketUpgrade(r)
}

// Bridge upgrades connections and runs their sessions.
type Bridge struct {
	pool       *bridge.Pool
	upgrader   websocket.Upgrader
	logger     *slog.Logger
	writeWait  time.Duration
	closeGrace time.Duration
	readLimit  int64
	observe    func(open bool)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the bridge logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithCheckOrigin replaces the default accept-all origin check.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(b *Bridge) { b.upgrader.CheckOrigin = fn }
}

// WithReadLimit bounds the size of inbound messages. Panics if n <= 0.
func WithReadLimit(n int64) Option {
	if n <= 0 {
		panic("websocket.WithReadLimit: limit must be > 0")
	}
	return func(b *Bridge) { b.readLimit = n }
}

// WithCloseGrace bounds how long the reader waits for the peer's close frame
// after the writer has sent its own. Panics if d <= 0.
func WithCloseGrace(d time.Duration) Option {
	if d <= 0 {
		panic("websocket.WithCloseGrace: duration must be > 0")
	}
	return func(b *Bridge) { b.closeGrace = d }
}

// WithSessionObserver is called when a session opens and when it is torn down.
func WithSessionObserver(fn func(open bool)) Option {
	return func(b *Bridge) {
		if fn != nil {
			b.observe = fn
		}
	}
}

// New returns a Bridge running handlers on pool.
func New(pool *bridge.Pool, opts ...Option) *Bridge {
	b := &Bridge{
		pool: pool,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger:     logger.Discard(),
		writeWait:  10 * time.Second,
		closeGrace: time.Second,
		readLimit:  1 << 20,
		observe:    func(bool) {},
	}
	for _, opt := range opts {
		opt(b)
	}
	b.ctx, b.cancel = context.WithCancel(context.Background())
	return b
}

// Serve upgrades the connection and starts the session. It returns once the
// 101 response is written; the upgrader has already answered the client when
// the handshake fails. rc may be nil.
func (b *Bridge) Serve(w http.ResponseWriter, r *http.Request, h Handler, rc *request.Context) error {
	if b.ctx.Err() != nil {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return ErrBridgeClosed
	}
	conn, err := b.upgrader.Upgrade(w, r, w.Header())
	if err != nil {
		return fmt.Errorf("websocket upgrade: %w", err)
	}
	if rc == nil {
		rc = request.New(r.Method, r.URL.Path, r.Header, request.ParseQuery(r.URL.RawQuery), nil, nil)
	}
	s := newSession(rc)
	s.state.Store(int32(StateOpen))

	b.wg.Add(1)
	go b.run(conn, s, h)
	return nil
}

// Close tears down every open session and waits for them.
func (b *Bridge) Close() {
	b.cancel()
	b.wg.Wait()
}

func (b *Bridge) run(conn *websocket.Conn, s *Session, h Handler) {
	defer b.wg.Done()
	b.observe(true)
	defer b.observe(false)

	log := b.logger.With(logger.Session(s.id))
	conn.SetReadLimit(b.readLimit)

	g, gctx := errgroup.WithContext(b.ctx)
	g.Go(func() error { return b.write(gctx, conn, s) })
	g.Go(func() error { return b.read(conn, s) })

	err := b.pool.Run(b.ctx, func(ctx context.Context, w *bridge.Worker) error {
		s.region.Store(b.pool.Exclusive())
		defer s.region.Store(nil)
		return h.Serve(ctx, w, s)
	})
	if err != nil {
		log.Warn("websocket handler failed", logger.Error(err))
		s.Close(websocket.CloseInternalServerErr)
	} else {
		s.Close(websocket.CloseNormalClosure)
	}

	if err := g.Wait(); err != nil {
		log.Debug("websocket session ended", logger.Error(err))
	}
	_ = conn.Close()
	s.teardown()
}

// write drains the outbound queue until a close is requested or the bridge
// shuts down. Queued messages are flushed before the close frame.
func (b *Bridge) write(ctx context.Context, conn *websocket.Conn, s *Session) error {
	defer func() { _ = conn.SetReadDeadline(time.Now().Add(b.closeGrace)) }()

	send := func(msg string) error {
		_ = conn.SetWriteDeadline(time.Now().Add(b.writeWait))
		return conn.WriteMessage(websocket.TextMessage, []byte(msg))
	}

	for {
		msg, ok, _, changed := s.outbound.next()
		if ok {
			if err := send(msg); err != nil {
				return err
			}
			continue
		}
		select {
		case <-changed:
		case <-s.closing:
			s.outbound.close()
			for {
				msg, ok, _, _ := s.outbound.next()
				if !ok {
					break
				}
				if err := send(msg); err != nil {
					return err
				}
			}
			frame := websocket.FormatCloseMessage(s.closeCode, "")
			return conn.WriteControl(websocket.CloseMessage, frame, time.Now().Add(b.writeWait))
		case <-ctx.Done():
			s.Close(websocket.CloseGoingAway)
			s.outbound.close()
			frame := websocket.FormatCloseMessage(websocket.CloseGoingAway, "")
			_ = conn.WriteControl(websocket.CloseMessage, frame, time.Now().Add(b.writeWait))
			return nil
		}
	}
}

// read forwards text frames to the inbound queue until the connection ends.
func (b *Bridge) read(conn *websocket.Conn, s *Session) error {
	defer func() {
		s.inbound.close()
		s.state.CompareAndSwap(int32(StateOpen), int32(StateClosing))
	}()
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				return nil
			}
			return err
		}
		if kind == websocket.TextMessage {
			s.inbound.push(string(data))
		}
	}
}
