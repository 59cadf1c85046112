package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ewaste-tracker/backend/internal/telemetry/domain"
)

// recordingEmitter implements EventEmitter for tests.
type recordingEmitter struct {
	mu      sync.Mutex
	events  []*domain.LifecycleEvent
	emitErr error
	done    chan struct{}
}

func (r *recordingEmitter) Emit(ctx context.Context, event *domain.LifecycleEvent) error {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	if r.done != nil {
		r.done <- struct{}{}
	}
	return r.emitErr
}

func (r *recordingEmitter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestFanout_EmitsToAllAndJoinsErrors(t *testing.T) {
	ok := &recordingEmitter{}
	failing := &recordingEmitter{emitErr: errors.New("broker down")}
	f := Fanout(nil, failing, ok)

	event := domain.NewEvent(domain.EventDeviceRegistered, "test", time.Now())
	err := f.Emit(context.Background(), event)
	if err == nil || err.Error() != "broker down" {
		t.Errorf("Emit error = %v, want broker down", err)
	}
	if ok.count() != 1 || failing.count() != 1 {
		t.Errorf("counts = %d, %d, want 1, 1", ok.count(), failing.count())
	}
}

func TestFanout_Empty(t *testing.T) {
	if err := Fanout().Emit(context.Background(), domain.NewEvent(domain.EventHTTPRequest, "test", time.Now())); err != nil {
		t.Errorf("empty fanout Emit: %v", err)
	}
}

func TestEmitAsync(t *testing.T) {
	em := &recordingEmitter{done: make(chan struct{}, 1)}
	EmitAsync(em, domain.NewEvent(domain.EventStatusUpdated, "test", time.Now()))
	select {
	case <-em.done:
	case <-time.After(2 * time.Second):
		t.Fatal("EmitAsync did not emit")
	}
	if em.count() != 1 {
		t.Errorf("events = %d, want 1", em.count())
	}
}

func TestEmitAsync_NilArgs(t *testing.T) {
	em := &recordingEmitter{}
	EmitAsync(nil, domain.NewEvent(domain.EventStatusUpdated, "test", time.Now()))
	EmitAsync(em, nil)
	time.Sleep(10 * time.Millisecond)
	if em.count() != 0 {
		t.Errorf("events = %d, want 0", em.count())
	}
}

func TestNewEvent(t *testing.T) {
	at := time.Date(2025, 5, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	a := domain.NewEvent(domain.EventImpactVerified, "svc", at)
	b := domain.NewEvent(domain.EventImpactVerified, "svc", at)
	if a.ID == b.ID {
		t.Error("NewEvent reused an id")
	}
	if a.CreatedAt.Location() != time.UTC || !a.CreatedAt.Equal(at) {
		t.Errorf("CreatedAt = %v, want %v in UTC", a.CreatedAt, at)
	}
}
