// Command dispatchd serves a Lua application through the dispatch core.
//
// Without configuration it serves the embedded demo app:
//
//	GET    /items              list items
//	POST   /items              create an item
//	GET    /items/{id}         fetch an item
//	DELETE /items/{id}         delete an item
//	GET    /slow?ms=100        async handler that sleeps
//	POST   /notify             responds, then logs from a background task
//	GET    /ws/echo            websocket echo
//	GET    /health             liveness probe
//
// Set DISPATCH_MANIFEST to serve another manifest, DISPATCH_METRICS_PATH to
// expose Prometheus metrics and DISPATCH_STATIC_DIR to mount a directory
// under /static.
package main

import (
	"context"
	"embed"
	"log/slog"
	"os"

	"github.com/dmitrymomot/dispatchkit/middleware"
	"github.com/dmitrymomot/dispatchkit/pkg/config"
	"github.com/dmitrymomot/dispatchkit/pkg/logger"
	"github.com/dmitrymomot/dispatchkit/pkg/luahost"
	"github.com/dmitrymomot/dispatchkit/pkg/metrics"
	"github.com/dmitrymomot/dispatchkit/server"
)

//go:embed app
var appFS embed.FS

func main() {
	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		slog.Error("failed to load config", logger.Error(err))
		os.Exit(1)
	}

	opts := []logger.Option{
		logger.WithEnvironment(cfg.Env, "dispatchd"),
		logger.WithContextExtractors(middleware.RequestIDExtractor()),
	}
	if cfg.LogLevel != "" {
		opts = append(opts, logger.WithLevelName(cfg.LogLevel))
	}
	log := logger.New(opts...)
	logger.SetAsDefault(log)

	if err := run(context.Background(), cfg, log); err != nil {
		log.Error("dispatchd stopped", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg appConfig, log *slog.Logger) error {
	host := luahost.New(luahost.WithLogger(log.With(logger.Component("lua"))))
	defer host.Close()

	srv, err := newServer(ctx, cfg, host, log)
	if err != nil {
		return err
	}
	log.Info("starting dispatchd", slog.String("addr", cfg.Server.Addr()), slog.Int("workers", srv.Pool().Size()))
	return srv.Run(ctx)
}

// newServer builds the server and registers the application on it.
func newServer(ctx context.Context, cfg appConfig, host *luahost.Host, log *slog.Logger) (*server.Server, error) {
	var srv *server.Server
	m := metrics.New(
		metrics.WithRuntimeCollectors(),
		metrics.WithPoolWorkers(func() int { return srv.Pool().Workers() }),
	)
	srv = server.NewFromConfig(cfg.Server,
		server.WithExclusive(host.Exclusive()),
		server.WithLogger(log),
		server.WithMetrics(m),
		server.WithMiddleware(
			middleware.RequestID{},
			middleware.NewCORS(middleware.CORSConfig{}),
			middleware.ErrorHandler{Debug: cfg.Debug},
			middleware.NewLogger(log),
		),
	)

	manifest, err := loadManifest(cfg.Manifest)
	if err != nil {
		return nil, err
	}
	if err := manifest.Register(ctx, host, srv); err != nil {
		return nil, err
	}
	if err := srv.Get("/health", server.HealthCheck()); err != nil {
		return nil, err
	}
	if cfg.StaticDir != "" {
		if err := srv.Mount("/static", server.StaticFiles(cfg.StaticDir, true)); err != nil {
			return nil, err
		}
	}
	return srv, nil
}

func loadManifest(path string) (*luahost.Manifest, error) {
	if path != "" {
		return luahost.LoadManifest(path)
	}
	return luahost.LoadManifestFS(appFS, "app/routes.yaml")
}
