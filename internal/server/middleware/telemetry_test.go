package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"ewaste-tracker/backend/internal/telemetry"
	"ewaste-tracker/backend/internal/telemetry/domain"
)

type chanEmitter chan *domain.LifecycleEvent

func (c chanEmitter) Emit(_ context.Context, e *domain.LifecycleEvent) error {
	c <- e
	return nil
}

func newTelemetryRouter(em telemetry.EventEmitter, metrics *RequestMetrics) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestTelemetry(em, metrics, map[string]bool{"/metrics": true}))
	r.Get("/api/device/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Get("/api/dashboard", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{}"))
	})
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {})
	return r
}

func TestRequestTelemetry_EmitsEventWithRoutePattern(t *testing.T) {
	em := make(chanEmitter, 1)
	reg := prometheus.NewRegistry()
	h := newTelemetryRouter(em, NewRequestMetrics(reg))

	req := httptest.NewRequest(http.MethodGet, "/api/device/42", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	select {
	case ev := <-em:
		if ev.Type != domain.EventHTTPRequest || ev.Source != requestSource {
			t.Errorf("event = %+v", ev)
		}
		if ev.Attributes["route"] != "/api/device/{id}" {
			t.Errorf("route = %q", ev.Attributes["route"])
		}
		if ev.Attributes["status"] != "404" || ev.Attributes["method"] != "GET" {
			t.Errorf("attributes = %v", ev.Attributes)
		}
		if _, ok := ev.Attributes["duration_ms"]; !ok {
			t.Error("duration_ms missing")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event emitted")
	}
}

func TestRequestTelemetry_CountsRequests(t *testing.T) {
	em := make(chanEmitter, 4)
	reg := prometheus.NewRegistry()
	metrics := NewRequestMetrics(reg)
	h := newTelemetryRouter(em, metrics)

	for i := 0; i < 2; i++ {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))
	}
	if got := testutil.ToFloat64(metrics.requests.WithLabelValues("GET", "/api/dashboard", "200")); got != 2 {
		t.Errorf("request count = %v, want 2", got)
	}
	if n, err := testutil.GatherAndCount(reg, "ewaste_http_requests_total"); err != nil || n != 1 {
		t.Errorf("registered series = %d, %v; want 1", n, err)
	}
}

func TestRequestTelemetry_SkipsPaths(t *testing.T) {
	em := make(chanEmitter, 1)
	metrics := NewRequestMetrics(nil)
	h := newTelemetryRouter(em, metrics)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	select {
	case ev := <-em:
		t.Fatalf("unexpected event for skipped path: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
	if got := testutil.CollectAndCount(metrics.requests); got != 0 {
		t.Errorf("collected %d series for skipped path", got)
	}
}

func TestRequestTelemetry_NilEmitter(t *testing.T) {
	h := newTelemetryRouter(nil, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}
