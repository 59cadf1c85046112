package domain

import (
	"time"

	"github.com/google/uuid"

	devicedomain "ewaste-tracker/backend/internal/device/domain"
)

// EventType names a lifecycle or request event.
type EventType string

const (
	EventDeviceRegistered EventType = "device_registered"
	EventStatusUpdated    EventType = "status_updated"
	EventImpactVerified   EventType = "impact_verified"
	EventHTTPRequest      EventType = "http_request"
)

// LifecycleEvent is published after a ledger-confirmed change, and for each
// served HTTP request. Fields that do not apply to the event type are empty.
type LifecycleEvent struct {
	ID              uuid.UUID                    `json:"id"`
	Type            EventType                    `json:"eventType"`
	Source          string                       `json:"source"`
	DeviceID        uint64                       `json:"deviceId,omitempty"`
	DeviceType      string                       `json:"deviceType,omitempty"`
	Status          string                       `json:"status,omitempty"`
	ConfirmationRef string                       `json:"confirmationRef,omitempty"`
	Impact          *devicedomain.ImpactSnapshot `json:"impact,omitempty"`
	Attributes      map[string]string            `json:"attributes,omitempty"`
	CreatedAt       time.Time                    `json:"createdAt"`
}

// NewEvent returns an event of type t with a fresh id.
func NewEvent(t EventType, source string, at time.Time) *LifecycleEvent {
	return &LifecycleEvent{
		ID:        uuid.New(),
		Type:      t,
		Source:    source,
		CreatedAt: at.UTC(),
	}
}
