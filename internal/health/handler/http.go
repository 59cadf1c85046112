package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type blockchainStatus struct {
	Connected    bool   `json:"connected"`
	Balance      string `json:"balance"`
	TotalDevices uint64 `json:"totalDevices"`
}

type healthResponse struct {
	Success    bool              `json:"success"`
	Status     string            `json:"status"`
	Blockchain *blockchainStatus `json:"blockchain,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// HTTP returns the GET /health handler: 200 with ledger details when healthy,
// 503 with the cause otherwise.
func HTTP(reporter Reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := reporter.Health(r.Context())
		status, body := http.StatusOK, healthResponse{
			Success: true,
			Status:  "healthy",
			Blockchain: &blockchainStatus{
				Connected:    true,
				Balance:      report.Balance + " " + NativeSymbol,
				TotalDevices: report.TotalDevices,
			},
		}
		if !report.Healthy {
			slog.Warn("health: ledger unhealthy", "cause", report.Cause)
			status, body = http.StatusServiceUnavailable, healthResponse{Status: "unhealthy", Error: report.Cause}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
