// Package producer defines the interface for publishing lifecycle events (to Kafka or MQTT).
package producer

import (
	"context"

	"ewaste-tracker/backend/internal/telemetry/domain"
)

// Producer publishes lifecycle events. Callers use it best-effort: log and ignore errors.
type Producer interface {
	// Emit sends a single event. Implementations may block briefly; call from a goroutine if needed.
	Emit(ctx context.Context, event *domain.LifecycleEvent) error
	// Close releases resources. Safe to call if already closed.
	Close() error
}
