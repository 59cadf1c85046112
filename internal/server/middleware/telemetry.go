package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"ewaste-tracker/backend/internal/telemetry"
	"ewaste-tracker/backend/internal/telemetry/domain"
)

const requestSource = "http_middleware"

// RequestMetrics holds the Prometheus collectors for served requests.
type RequestMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewRequestMetrics registers request collectors on reg. reg may be nil, in
// which case the collectors are created but not exported.
func NewRequestMetrics(reg prometheus.Registerer) *RequestMetrics {
	m := &RequestMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ewaste_http_requests_total",
			Help: "HTTP requests served, by method, route and status.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ewaste_http_request_duration_seconds",
			Help:    "HTTP request latency, by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.duration)
	}
	return m
}

// RequestTelemetry records metrics and emits an http_request event after each
// request. Emission is best-effort and never affects the response. Paths in
// skip (e.g. /metrics) are served without telemetry.
func RequestTelemetry(emitter telemetry.EventEmitter, metrics *RequestMetrics, skip map[string]bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			elapsed := time.Since(start)
			route := routePattern(r)
			code := strconv.Itoa(status)
			if metrics != nil {
				metrics.requests.WithLabelValues(r.Method, route, code).Inc()
				metrics.duration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())
			}

			event := domain.NewEvent(domain.EventHTTPRequest, requestSource, start)
			event.Attributes = map[string]string{
				"method":      r.Method,
				"route":       route,
				"status":      code,
				"duration_ms": strconv.FormatInt(elapsed.Milliseconds(), 10),
				"client_ip":   ClientIP(r),
			}
			telemetry.EmitAsync(emitter, event)
		})
	}
}

// routePattern returns the matched chi route so device ids do not explode
// label cardinality. Unmatched requests are grouped under "unmatched".
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
