package main

import "github.com/dmitrymomot/dispatchkit/server"

type appConfig struct {
	Server server.Config

	Env      string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL"`
	// Manifest points at a route manifest on disk; the embedded demo app is
	// served when it is empty.
	Manifest  string `env:"DISPATCH_MANIFEST"`
	StaticDir string `env:"DISPATCH_STATIC_DIR"`
	Debug     bool   `env:"DISPATCH_DEBUG"`
}
