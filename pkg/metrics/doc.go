// Package metrics exposes Prometheus collectors for the dispatch server.
//
// A Metrics value owns its own registry so several servers, or tests, never
// collide on collector names. Record methods are nil-safe: components accept
// a *Metrics and skip instrumentation when none was configured.
//
//	m := metrics.New(metrics.WithNamespace("dispatch"))
//	srv := server.New(server.WithMetrics(m))
//	http.Handle("/metrics", m.Handler())
package metrics
