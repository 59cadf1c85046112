// Package handler exposes the ledger health report over HTTP and the standard
// gRPC health protocol.
package handler

import (
	"context"

	"ewaste-tracker/backend/internal/device/service"
)

// NativeSymbol is appended to the operator balance in HTTP health responses.
const NativeSymbol = "MATIC"

// Reporter produces a health report. *service.DeviceService implements it.
type Reporter interface {
	Health(ctx context.Context) *service.HealthReport
}
