// Package server assembles the HTTP router and the gRPC server.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"

	devicehandler "ewaste-tracker/backend/internal/device/handler"
	healthhandler "ewaste-tracker/backend/internal/health/handler"
	"ewaste-tracker/backend/internal/server/middleware"
	"ewaste-tracker/backend/internal/telemetry"
)

// APIVersion is reported by the index route.
const APIVersion = "1.0.0"

const requestTimeout = 60 * time.Second

// Deps holds the dependencies of the HTTP router.
type Deps struct {
	// Devices serves the device lifecycle routes. Required.
	Devices devicehandler.DeviceService
	// Health reports ledger connectivity for /api/health. Required.
	Health healthhandler.Reporter
	// Tokens validates operator tokens. If nil, mutating routes are open.
	Tokens middleware.TokenValidator
	// Events receives an http_request event per served request. May be nil.
	Events telemetry.EventEmitter
	// Metrics serves /metrics. If nil, the route is not mounted.
	Metrics http.Handler
	// MetricsRegisterer receives the request collectors. May be nil.
	MetricsRegisterer prometheus.Registerer
	// FrontendURL is the allowed CORS origin.
	FrontendURL string
}

// NewRouter returns the HTTP handler for the API.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{deps.FrontendURL},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestTelemetry(
		deps.Events,
		middleware.NewRequestMetrics(deps.MetricsRegisterer),
		map[string]bool{"/metrics": true, "/api/health": true},
	))
	r.Use(chimw.Timeout(requestTimeout))

	r.Get("/", index)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	var protect func(http.Handler) http.Handler
	if deps.Tokens != nil {
		protect = middleware.RequireOperator(deps.Tokens)
	}
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", healthhandler.HTTP(deps.Health))
		devicehandler.NewHandler(deps.Devices).Routes(r, protect)
	})
	return r
}

type indexResponse struct {
	Message   string            `json:"message"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
}

func index(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(indexResponse{
		Message: "🌱 EWaste Tracker API",
		Version: APIVersion,
		Endpoints: map[string]string{
			"registerDevice": "POST /api/register-device",
			"updateStatus":   "POST /api/update-status",
			"getDevice":      "GET /api/device/:id",
			"getAllDevices":  "GET /api/devices",
			"dashboard":      "GET /api/dashboard",
			"estimateImpact": "POST /api/estimate-impact",
			"health":         "GET /api/health",
		},
	})
}
