package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrymomot/dispatchkit/background"
	"github.com/dmitrymomot/dispatchkit/bridge"
	"github.com/dmitrymomot/dispatchkit/dispatch"
	"github.com/dmitrymomot/dispatchkit/middleware"
	"github.com/dmitrymomot/dispatchkit/pkg/logger"
	"github.com/dmitrymomot/dispatchkit/pkg/metrics"
	"github.com/dmitrymomot/dispatchkit/router"
	"github.com/dmitrymomot/dispatchkit/signature"
	"github.com/dmitrymomot/dispatchkit/websocket"
)

// ServerHeader is the value of the Server header on every response.
const ServerHeader = "dispatchkit/1.0"

type config struct {
	addr            string
	workers         int
	maxSessions     int
	region          *bridge.Exclusive
	strictStrings   bool
	maxBody         int64
	readTimeout     time.Duration
	writeTimeout    time.Duration
	idleTimeout     time.Duration
	shutdownTimeout time.Duration
	flushWait       time.Duration
	logger          *slog.Logger
	metrics         *metrics.Metrics
	metricsPath     string
	introspector    signature.Introspector
	resolver        signature.Resolver
	middleware      []any
}

func defaultConfig() *config {
	return &config{
		addr:            ":8000",
		maxSessions:     512,
		maxBody:         32 << 20,
		shutdownTimeout: 10 * time.Second,
		flushWait:       30 * time.Second,
	}
}

// Server is the HTTP and WebSocket front end of the dispatch engine.
type Server struct {
	cfg *config
	log *slog.Logger

	routes    *router.Router
	sigs      *signature.Cache
	builder   *signature.Builder
	chain     *middleware.Chain
	engine    *dispatch.Engine
	notFound  *signature.Signature
	wsRoutes  *router.Router
	wsHandler []websocket.Handler

	pool      *bridge.Pool
	sessions  *bridge.Pool
	scheduler *background.Scheduler
	ws        *websocket.Bridge
	metrics   *metrics.Metrics

	startup  []hook
	shutdown []hook

	mu       sync.Mutex
	running  bool
	srv      *http.Server
	addr     net.Addr
	ready    chan struct{}
	stopOnce sync.Once
	stopErr  error
}

// New returns a configured Server. Options that were given invalid values
// panic, as do middleware values that implement no hook.
func New(opts ...Option) *Server {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logger.Discard()
	}
	if cfg.region == nil {
		cfg.region = bridge.NewExclusive()
	}
	if cfg.metricsPath != "" && cfg.metrics == nil {
		cfg.metrics = metrics.New()
	}

	chain, err := middleware.NewChain(cfg.middleware...)
	if err != nil {
		panic(fmt.Sprintf("server.New: %v", err))
	}

	poolOpts := []bridge.PoolOption{
		bridge.WithExclusive(cfg.region),
		bridge.WithLogger(cfg.logger.With(logger.Component("pool"))),
	}
	if cfg.workers > 0 {
		poolOpts = append(poolOpts, bridge.WithSize(cfg.workers))
	}
	pool := bridge.NewPool(poolOpts...)
	// Sessions hold a worker for their whole lifetime, so they get their own
	// pool over the same region and never starve request dispatch.
	sessions := bridge.NewPool(
		bridge.WithExclusive(cfg.region),
		bridge.WithSize(cfg.maxSessions),
		bridge.WithLogger(cfg.logger.With(logger.Component("sessions"))),
	)

	mode := dispatch.StringsAsText
	if cfg.strictStrings {
		mode = dispatch.StringsAsJSON
	}

	var builderOpts []signature.Option
	if cfg.introspector != nil {
		builderOpts = append(builderOpts, signature.WithIntrospector(cfg.introspector))
	}
	if cfg.resolver != nil {
		builderOpts = append(builderOpts, signature.WithResolver(cfg.resolver))
	}

	s := &Server{
		cfg:      cfg,
		log:      cfg.logger,
		routes:   router.New(),
		sigs:     signature.NewCache(),
		builder:  signature.NewBuilder(builderOpts...),
		chain:    chain,
		wsRoutes: router.New(),
		pool:     pool,
		sessions: sessions,
		metrics:  cfg.metrics,
		ready:    make(chan struct{}),
	}
	s.engine = dispatch.New(
		dispatch.WithMiddleware(chain),
		dispatch.WithStringMode(mode),
		dispatch.WithLogger(cfg.logger.With(logger.Component("dispatch"))),
	)
	s.scheduler = background.NewScheduler(pool,
		background.WithLogger(cfg.logger.With(logger.Component("background"))),
		background.WithFlushWait(cfg.flushWait),
		background.WithObserver(func(o background.Outcome) { s.metrics.TaskOutcome(string(o)) }),
	)
	s.ws = websocket.New(sessions,
		websocket.WithLogger(cfg.logger.With(logger.Component("websocket"))),
		websocket.WithSessionObserver(s.metrics.SessionObserver),
	)
	return s
}

// Exclusive returns the region every handler runs in.
func (s *Server) Exclusive() *bridge.Exclusive { return s.cfg.region }

// Pool returns the offload pool.
func (s *Server) Pool() *bridge.Pool { return s.pool }

// Sessions returns the pool websocket sessions run on.
func (s *Server) Sessions() *bridge.Pool { return s.sessions }

// Addr returns the bound listener address once Run has started listening.
// It blocks until then or until ctx is done.
func (s *Server) Addr(ctx context.Context) (net.Addr, error) {
	select {
	case <-s.ready:
		return s.addr, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run starts listening and blocks until shutdown. It returns ErrStart wrapped
// with the cause when the listener cannot be opened or a startup hook fails.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.Join(ErrStart, ErrRunning)
	}
	s.running = true

	var handler http.Handler = s
	if s.cfg.metricsPath != "" {
		mux := http.NewServeMux()
		mux.Handle(s.cfg.metricsPath, s.metrics.Handler())
		mux.Handle("/", s)
		handler = withServerHeader(mux)
	}
	srv := &http.Server{
		Addr:         s.cfg.addr,
		Handler:      handler,
		ReadTimeout:  s.cfg.readTimeout,
		WriteTimeout: s.cfg.writeTimeout,
		IdleTimeout:  s.cfg.idleTimeout,
		ErrorLog:     slog.NewLogLogger(s.log.Handler(), slog.LevelWarn),
	}
	s.srv = srv
	s.mu.Unlock()

	if err := s.runHooks(ctx, s.startup); err != nil {
		s.closePools()
		return errors.Join(ErrStart, err)
	}

	ln, err := net.Listen("tcp", s.cfg.addr)
	if err != nil {
		s.closePools()
		return errors.Join(ErrStart, err)
	}
	s.addr = ln.Addr()
	close(s.ready)
	s.log.InfoContext(ctx, "server listening", slog.String("addr", s.addr.String()))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	var runErr error
	select {
	case <-ctx.Done():
	case sig := <-stop:
		s.log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case runErr = <-errCh:
	}

	shutdownErr := s.Shutdown(context.Background())
	if runErr == nil {
		runErr = <-errCh
	}
	if runErr != nil && !errors.Is(runErr, http.ErrServerClosed) {
		return errors.Join(ErrStart, runErr)
	}
	return shutdownErr
}

// Shutdown stops the server gracefully. In-flight requests finish, websocket
// sessions are closed, shutdown hooks run, pending background tasks complete
// and the pool stops. It is safe for repeated calls.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		srv := s.srv
		s.mu.Unlock()

		var errs []error
		if srv != nil {
			sctx, cancel := context.WithTimeout(ctx, s.cfg.shutdownTimeout)
			if err := srv.Shutdown(sctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errs = append(errs, err)
			}
			cancel()
		}
		s.ws.Close()
		if err := s.runHooks(ctx, s.shutdown); err != nil {
			errs = append(errs, err)
		}
		s.scheduler.Wait()
		s.closePools()
		s.log.Info("server stopped")

		if len(errs) > 0 {
			s.stopErr = errors.Join(append([]error{ErrShutdown}, errs...)...)
		}
	})
	return s.stopErr
}

func (s *Server) closePools() {
	s.sessions.Close()
	s.pool.Close()
}

func withServerHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", ServerHeader)
		next.ServeHTTP(w, r)
	})
}
