// Package config loads typed configuration from the process environment.
//
// Values come from environment variables, optionally seeded from one or more
// .env files through github.com/joho/godotenv, and are parsed into tagged
// structs by github.com/caarlos0/env/v11:
//
//	type Config struct {
//		Host string `env:"DISPATCH_HOST" envDefault:"0.0.0.0"`
//		Port int    `env:"DISPATCH_PORT" envDefault:"8000"`
//	}
//
//	var cfg Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//
// Every struct type is parsed once per process and served from a cache
// afterwards. A failed parse is not cached, so a later call can succeed once
// the environment is fixed. ResetCache and Reload exist for tests and for
// binaries that load extra .env files after start-up.
package config
