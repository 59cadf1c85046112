package service

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"ewaste-tracker/backend/internal/device/domain"
)

const instrumentationName = "ewaste-tracker/backend/internal/device/service"

type serviceMetrics struct {
	registrations   metric.Int64Counter
	statusUpdates   metric.Int64Counter
	verifiedImpacts metric.Int64Counter
	skippedFetches  metric.Int64Counter
}

func newServiceMetrics() *serviceMetrics {
	meter := otel.Meter(instrumentationName)
	return &serviceMetrics{
		registrations:   counter(meter, "devices.registered", "Devices registered on the ledger."),
		statusUpdates:   counter(meter, "devices.status_updates", "Confirmed lifecycle status updates."),
		verifiedImpacts: counter(meter, "impacts.verified", "Verified impact snapshots computed."),
		skippedFetches:  counter(meter, "enumeration.skipped", "Device records skipped during enumeration."),
	}
}

func counter(meter metric.Meter, name, desc string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		slog.Warn("device: create counter", "name", name, "error", err)
		return noop.Int64Counter{}
	}
	return c
}

func (m *serviceMetrics) registered(ctx context.Context, t domain.DeviceType) {
	m.registrations.Add(ctx, 1, metric.WithAttributes(attribute.String("device_type", string(t))))
}

func (m *serviceMetrics) statusUpdated(ctx context.Context, s domain.Status) {
	m.statusUpdates.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(s))))
}

func (m *serviceMetrics) verified(ctx context.Context, t domain.DeviceType) {
	m.verifiedImpacts.Add(ctx, 1, metric.WithAttributes(attribute.String("device_type", string(t))))
}

func (m *serviceMetrics) skipped(ctx context.Context, n int64) {
	m.skippedFetches.Add(ctx, n)
}
