package server

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/dispatchkit/bridge"
	"github.com/dmitrymomot/dispatchkit/pkg/metrics"
	"github.com/dmitrymomot/dispatchkit/signature"
)

// Option configures the Server.
type Option func(*config)

// WithAddr sets the address the server listens on.
func WithAddr(addr string) Option {
	if addr == "" {
		panic("WithAddr: addr cannot be empty")
	}
	return func(c *config) { c.addr = addr }
}

// WithWorkers bounds the offload pool. Panics if n < 1.
func WithWorkers(n int) Option {
	if n < 1 {
		panic("WithWorkers: n must be >= 1")
	}
	return func(c *config) { c.workers = n }
}

// WithMaxSessions bounds how many websocket sessions run at once. Sessions
// use their own pool, separate from request dispatch. Panics if n < 1.
func WithMaxSessions(n int) Option {
	if n < 1 {
		panic("WithMaxSessions: n must be >= 1")
	}
	return func(c *config) { c.maxSessions = n }
}

// WithExclusive makes handlers run inside region instead of a region owned
// by the server. Share it with anything else that must not run concurrently
// with handlers, such as an embedded interpreter.
func WithExclusive(region *bridge.Exclusive) Option {
	if region == nil {
		panic("WithExclusive: nil region")
	}
	return func(c *config) { c.region = region }
}

// WithStrictStrings encodes string results as JSON strings.
func WithStrictStrings() Option {
	return func(c *config) { c.strictStrings = true }
}

// WithMaxBody bounds how many request body bytes are read. Panics if n <= 0.
func WithMaxBody(n int64) Option {
	if n <= 0 {
		panic("WithMaxBody: limit must be > 0")
	}
	return func(c *config) { c.maxBody = n }
}

// WithReadTimeout sets the maximum duration for reading the entire request.
func WithReadTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("WithReadTimeout: duration must be > 0")
	}
	return func(c *config) { c.readTimeout = d }
}

// WithWriteTimeout sets the maximum duration before timing out writes of the response.
func WithWriteTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("WithWriteTimeout: duration must be > 0")
	}
	return func(c *config) { c.writeTimeout = d }
}

// WithIdleTimeout sets the maximum amount of time to wait for the next request when keep-alives are enabled.
func WithIdleTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("WithIdleTimeout: duration must be > 0")
	}
	return func(c *config) { c.idleTimeout = d }
}

// WithShutdownTimeout bounds how long shutdown waits for in-flight requests.
func WithShutdownTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("WithShutdownTimeout: duration must be > 0")
	}
	return func(c *config) { c.shutdownTimeout = d }
}

// WithFlushWait bounds how long a background task waits for its response to
// be flushed. Panics if d <= 0.
func WithFlushWait(d time.Duration) Option {
	if d <= 0 {
		panic("WithFlushWait: duration must be > 0")
	}
	return func(c *config) { c.flushWait = d }
}

// WithLogger supplies an external slog.Logger instance. If nil, a noop logger is used.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithMetrics instruments the server with m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *config) { c.metrics = m }
}

// WithMetricsPath serves the metrics registry on path. A registry is created
// when WithMetrics was not given.
func WithMetricsPath(path string) Option {
	if path == "" || path[0] != '/' {
		panic("WithMetricsPath: path must begin with '/'")
	}
	return func(c *config) { c.metricsPath = path }
}

// WithIntrospector replaces the introspector used to build route signatures.
func WithIntrospector(i signature.Introspector) Option {
	return func(c *config) { c.introspector = i }
}

// WithResolver replaces the dependency resolver used by route signatures.
func WithResolver(r signature.Resolver) Option {
	return func(c *config) { c.resolver = r }
}

// WithMiddleware registers hooks, equivalent to calling Use before Run.
func WithMiddleware(mws ...any) Option {
	return func(c *config) { c.middleware = append(c.middleware, mws...) }
}
