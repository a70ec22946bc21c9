package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application. All record
// methods are safe to call on a nil receiver so collaborators can treat the
// dependency as optional.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	permCacheHits   prometheus.Counter
	permCacheMisses prometheus.Counter
	auditWrites     *prometheus.CounterVec
	auditFailures   prometheus.Counter
}

// NewMetrics initialises the registry and core metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "skolar_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "skolar_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	permHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "skolar_permission_cache_hits_total",
		Help: "Permission resolutions served from the in-process cache.",
	})
	permMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "skolar_permission_cache_misses_total",
		Help: "Permission resolutions that required a store load.",
	})
	auditWrites := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "skolar_audit_entries_total",
		Help: "Audit entries written, by capture path.",
	}, []string{"path"})
	auditFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "skolar_audit_write_failures_total",
		Help: "Best-effort audit writes that failed and were degraded to logs.",
	})
	registry.MustRegister(requests, duration, permHits, permMisses, auditWrites, auditFailures)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		permCacheHits:   permHits,
		permCacheMisses: permMisses,
		auditWrites:     auditWrites,
		auditFailures:   auditFailures,
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

// PermissionCacheHit records a cache hit in the resolution engine.
func (m *Metrics) PermissionCacheHit() {
	if m != nil {
		m.permCacheHits.Inc()
	}
}

// PermissionCacheMiss records a cache miss in the resolution engine.
func (m *Metrics) PermissionCacheMiss() {
	if m != nil {
		m.permCacheMisses.Inc()
	}
}

// AuditWrite records one audit entry written via the given path
// ("storage" or "application").
func (m *Metrics) AuditWrite(path string) {
	if m != nil {
		m.auditWrites.WithLabelValues(path).Inc()
	}
}

// AuditWriteFailure records a swallowed best-effort audit write failure.
func (m *Metrics) AuditWriteFailure() {
	if m != nil {
		m.auditFailures.Inc()
	}
}

// Registerer exposes the registry for custom metric registration.
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
