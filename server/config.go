package server

import (
	"net"
	"strconv"
	"time"
)

// Config is the environment-driven server configuration.
type Config struct {
	Host            string        `env:"DISPATCH_HOST" envDefault:"0.0.0.0"`
	Port            int           `env:"DISPATCH_PORT" envDefault:"8000"`
	Workers         int           `env:"DISPATCH_WORKERS"` // 0 keeps the pool default
	MaxSessions     int           `env:"DISPATCH_MAX_SESSIONS" envDefault:"512"`
	StrictStrings   bool          `env:"DISPATCH_STRICT_STRINGS"`
	MaxBody         int64         `env:"DISPATCH_MAX_BODY" envDefault:"33554432"`
	MetricsPath     string        `env:"DISPATCH_METRICS_PATH"`
	ReadTimeout     time.Duration `env:"DISPATCH_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout    time.Duration `env:"DISPATCH_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout     time.Duration `env:"DISPATCH_IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"DISPATCH_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Addr joins Host and Port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// NewFromConfig creates a Server from cfg. Only non-zero values are applied;
// opts are applied after them and win.
func NewFromConfig(cfg Config, opts ...Option) *Server {
	configOpts := make([]Option, 0, 11)

	if cfg.Port > 0 {
		configOpts = append(configOpts, WithAddr(cfg.Addr()))
	}
	if cfg.Workers > 0 {
		configOpts = append(configOpts, WithWorkers(cfg.Workers))
	}
	if cfg.MaxSessions > 0 {
		configOpts = append(configOpts, WithMaxSessions(cfg.MaxSessions))
	}
	if cfg.StrictStrings {
		configOpts = append(configOpts, WithStrictStrings())
	}
	if cfg.MaxBody > 0 {
		configOpts = append(configOpts, WithMaxBody(cfg.MaxBody))
	}
	if cfg.MetricsPath != "" {
		configOpts = append(configOpts, WithMetricsPath(cfg.MetricsPath))
	}
	if cfg.ReadTimeout > 0 {
		configOpts = append(configOpts, WithReadTimeout(cfg.ReadTimeout))
	}
	if cfg.WriteTimeout > 0 {
		configOpts = append(configOpts, WithWriteTimeout(cfg.WriteTimeout))
	}
	if cfg.IdleTimeout > 0 {
		configOpts = append(configOpts, WithIdleTimeout(cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout > 0 {
		configOpts = append(configOpts, WithShutdownTimeout(cfg.ShutdownTimeout))
	}

	return New(append(configOpts, opts...)...)
}
