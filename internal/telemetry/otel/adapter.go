package otel

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"ewaste-tracker/backend/internal/telemetry"
	"ewaste-tracker/backend/internal/telemetry/domain"
)

const loggerName = "ewaste.lifecycle"

// recordEmitter is the part of otellog.Logger the emitter uses.
type recordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// NewEventEmitter returns an EventEmitter that sends events as OTel log records via the given LoggerProvider.
// If provider is nil, returns a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return NewEventEmitterWithLogger(provider.Logger(loggerName))
}

// NewEventEmitterWithLogger returns an EventEmitter writing to logger.
func NewEventEmitterWithLogger(logger recordEmitter) telemetry.EventEmitter {
	return &otelEmitter{logger: logger}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *domain.LifecycleEvent) error { return nil }

type otelEmitter struct {
	logger recordEmitter
}

// Emit converts the lifecycle event to an OTel log record whose body is the
// event JSON. Identifying fields are copied to attributes.
func (e *otelEmitter) Emit(ctx context.Context, event *domain.LifecycleEvent) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	rec.SetTimestamp(event.CreatedAt)
	if rec.Timestamp().IsZero() {
		rec.SetTimestamp(time.Now().UTC())
	}
	rec.SetSeverity(otellog.SeverityInfo)
	if body, err := json.Marshal(event); err == nil {
		rec.SetBody(otellog.BytesValue(body))
	}

	rec.AddAttributes(
		otellog.String("event_id", event.ID.String()),
		otellog.String("event_type", string(event.Type)),
	)
	if event.Source != "" {
		rec.AddAttributes(otellog.String("source", event.Source))
	}
	if event.DeviceID != 0 {
		rec.AddAttributes(otellog.String("device_id", strconv.FormatUint(event.DeviceID, 10)))
	}
	if event.DeviceType != "" {
		rec.AddAttributes(otellog.String("device_type", event.DeviceType))
	}
	if event.Status != "" {
		rec.AddAttributes(otellog.String("status", event.Status))
	}
	if event.ConfirmationRef != "" {
		rec.AddAttributes(otellog.String("confirmation_ref", event.ConfirmationRef))
	}
	keys := make([]string, 0, len(event.Attributes))
	for k := range event.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		rec.AddAttributes(otellog.String(k, event.Attributes[k]))
	}
	e.logger.Emit(ctx, rec)
	return nil
}
