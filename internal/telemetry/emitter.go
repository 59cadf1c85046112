package telemetry

import (
	"context"
	"errors"

	"ewaste-tracker/backend/internal/telemetry/domain"
)

// EventEmitter emits lifecycle events (to Kafka, MQTT, OTel logs). Best-effort;
// callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *domain.LifecycleEvent) error
}

// Fanout returns an EventEmitter that emits to every non-nil emitter in turn.
// All emitters are attempted; their errors are joined.
func Fanout(emitters ...EventEmitter) EventEmitter {
	var live []EventEmitter
	for _, e := range emitters {
		if e != nil {
			live = append(live, e)
		}
	}
	return fanout(live)
}

type fanout []EventEmitter

func (f fanout) Emit(ctx context.Context, event *domain.LifecycleEvent) error {
	var errs []error
	for _, e := range f {
		if err := e.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
