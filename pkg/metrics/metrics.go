package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server collectors.
type Metrics struct {
	registry *prometheus.Registry

	requests   *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	inFlight   prometheus.Gauge
	sessions   prometheus.Gauge
	tasks      *prometheus.CounterVec
	poolWorker prometheus.GaugeFunc
}

type options struct {
	namespace string
	buckets   []float64
	runtime   bool
	workers   func() float64
}

// Option configures Metrics.
type Option func(*options)

// WithNamespace prefixes every metric name. The default is "dispatch".
func WithNamespace(ns string) Option {
	return func(o *options) { o.namespace = ns }
}

// WithBuckets overrides the latency histogram buckets. Panics when empty.
func WithBuckets(b ...float64) Option {
	if len(b) == 0 {
		panic("metrics.WithBuckets: at least one bucket is required")
	}
	return func(o *options) { o.buckets = b }
}

// WithRuntimeCollectors registers the Go runtime and process collectors.
func WithRuntimeCollectors() Option {
	return func(o *options) { o.runtime = true }
}

// WithPoolWorkers exports the number of spawned offload workers, read from fn
// at scrape time.
func WithPoolWorkers(fn func() int) Option {
	return func(o *options) {
		if fn != nil {
			o.workers = func() float64 { return float64(fn()) }
		}
	}
}

// New registers the collectors on a fresh registry.
func New(opts ...Option) *Metrics {
	o := options{namespace: "dispatch", buckets: prometheus.DefBuckets}
	for _, opt := range opts {
		opt(&o)
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: o.namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Time from routing to the flushed response.",
			Buckets:   o.buckets,
		}, []string{"method"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: o.namespace,
			Name:      "http_requests_in_flight",
			Help:      "Requests currently being dispatched.",
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: o.namespace,
			Name:      "websocket_sessions_open",
			Help:      "WebSocket sessions currently open.",
		}),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "background_tasks_total",
			Help:      "Background tasks by outcome.",
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(m.requests, m.latency, m.inFlight, m.sessions, m.tasks)

	if o.workers != nil {
		m.poolWorker = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: o.namespace,
			Name:      "pool_workers",
			Help:      "Offload pool workers spawned so far.",
		}, o.workers)
		m.registry.MustRegister(m.poolWorker)
	}
	if o.runtime {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RequestStarted marks a request in flight. The returned func records it as
// finished with the final status.
func (m *Metrics) RequestStarted(method string) func(status int) {
	if m == nil {
		return func(int) {}
	}
	start := time.Now()
	m.inFlight.Inc()
	return func(status int) {
		m.inFlight.Dec()
		m.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
		m.latency.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}
}

// SessionObserver matches the websocket bridge observer signature.
func (m *Metrics) SessionObserver(open bool) {
	if m == nil {
		return
	}
	if open {
		m.sessions.Inc()
		return
	}
	m.sessions.Dec()
}

// TaskOutcome counts a finished background task.
func (m *Metrics) TaskOutcome(outcome string) {
	if m == nil {
		return
	}
	m.tasks.WithLabelValues(outcome).Inc()
}
