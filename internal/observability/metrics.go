package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	reconcilesTotal *prometheus.CounterVec
	importsTotal    *prometheus.CounterVec
	seedRunsTotal   *prometheus.CounterVec
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "meridian_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	reconciles := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_reconcile_total",
		Help: "Grant reconciliations by kind and outcome.",
	}, []string{"kind", "outcome"})
	imports := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_role_import_total",
		Help: "Role import runs by outcome.",
	}, []string{"outcome"})
	seeds := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_seed_runs_total",
		Help: "Bootstrap seed runs by outcome.",
	}, []string{"outcome"})
	registry.MustRegister(requests, duration, reconciles, imports, seeds)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		reconcilesTotal: reconciles,
		importsTotal:    imports,
		seedRunsTotal:   seeds,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// RecordReconcile counts a reconciliation run. Kind is "single" or "bulk".
func (m *Metrics) RecordReconcile(kind, outcome string) {
	if m == nil {
		return
	}
	m.reconcilesTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordImport counts a role import run.
func (m *Metrics) RecordImport(outcome string) {
	if m == nil {
		return
	}
	m.importsTotal.WithLabelValues(outcome).Inc()
}

// RecordSeed counts a bootstrap seed run.
func (m *Metrics) RecordSeed(outcome string) {
	if m == nil {
		return
	}
	m.seedRunsTotal.WithLabelValues(outcome).Inc()
}

// Registerer exposes the registry for registering custom metrics.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
