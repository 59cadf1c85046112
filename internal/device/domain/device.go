package domain

import (
	"fmt"
	"time"
)

// DeviceType is the kind of electronic device tracked on the ledger.
type DeviceType string

const (
	DeviceTypeLaptop DeviceType = "Laptop"
	DeviceTypePhone  DeviceType = "Phone"
	DeviceTypeTV     DeviceType = "TV"
)

// DeviceTypes lists every supported device type in a stable order.
var DeviceTypes = []DeviceType{DeviceTypeLaptop, DeviceTypePhone, DeviceTypeTV}

// Valid reports whether t is one of the supported device types.
func (t DeviceType) Valid() bool {
	switch t {
	case DeviceTypeLaptop, DeviceTypePhone, DeviceTypeTV:
		return true
	}
	return false
}

// ParseDeviceType returns the DeviceType for s, or ErrInvalidDeviceType.
func ParseDeviceType(s string) (DeviceType, error) {
	t := DeviceType(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidDeviceType, s)
	}
	return t, nil
}

// Status is a lifecycle status as recorded on the ledger.
type Status string

const (
	StatusDisposed  Status = "Disposed"
	StatusCollected Status = "Collected"
	StatusRecycled  Status = "Recycled"
)

// Valid reports whether s is a known lifecycle status.
func (s Status) Valid() bool {
	switch s {
	case StatusDisposed, StatusCollected, StatusRecycled:
		return true
	}
	return false
}

// IsTerminal reports whether s is the final lifecycle status.
func (s Status) IsTerminal() bool {
	return s == StatusRecycled
}

// Requestable reports whether s may be requested by a status update.
// Disposed is only set by registration.
func (s Status) Requestable() bool {
	return s == StatusCollected || s == StatusRecycled
}

// InitialStatus is the status every device carries right after registration.
const InitialStatus = StatusDisposed

// DeviceRecord is the ledger-owned device record. Only Status and LastUpdated
// change after creation.
type DeviceRecord struct {
	ID           uint64     `json:"id"`
	DeviceType   DeviceType `json:"deviceType"`
	Status       Status     `json:"status"`
	Owner        string     `json:"registeredBy"`
	RegisteredAt time.Time  `json:"registeredAt"`
	LastUpdated  time.Time  `json:"lastUpdated"`
}

// Metadata holds the locally stored attributes captured at registration.
type Metadata struct {
	DeviceID            uint64  `json:"deviceId"`
	WeightKg            float64 `json:"weight"`
	Location            string  `json:"location"`
	TransportDistanceKm float64 `json:"transportDistance"`
}

// ImpactKind tags an impact snapshot with the point at which it was computed.
type ImpactKind string

const (
	ImpactProjected ImpactKind = "projected"
	ImpactVerified  ImpactKind = "verified"
)

// ImpactSnapshot is a derived environmental impact figure set for one device.
// Snapshots are never mutated once stored.
type ImpactSnapshot struct {
	DeviceID              uint64     `json:"deviceId"`
	CO2SavedKg            float64    `json:"co2Saved"`
	ToxicWastePreventedKg float64    `json:"toxicWastePrevented"`
	SustainabilityScore   int        `json:"sustainabilityScore"`
	Kind                  ImpactKind `json:"impactType"`
}

// TimelineEntry records one ledger-confirmed lifecycle transition.
type TimelineEntry struct {
	Status          Status    `json:"status"`
	Timestamp       time.Time `json:"timestamp"`
	ConfirmationRef string    `json:"transactionHash,omitempty"`
}

// DeviceView merges ledger state with the local satellite data for a device.
// MetadataMissing is set when the ledger knows the device but the local store
// does not; impacts and timeline are then empty.
type DeviceView struct {
	Device          DeviceRecord    `json:"device"`
	Metadata        *Metadata       `json:"metadata,omitempty"`
	MetadataMissing bool            `json:"metadataMissing"`
	ProjectedImpact *ImpactSnapshot `json:"projectedImpact,omitempty"`
	VerifiedImpact  *ImpactSnapshot `json:"verifiedImpact,omitempty"`
	Timeline        []TimelineEntry `json:"timeline"`
}

// StatusCounts counts devices per lifecycle status.
type StatusCounts struct {
	Disposed  int `json:"disposed"`
	Collected int `json:"collected"`
	Recycled  int `json:"recycled"`
}

// DashboardStats aggregates fleet-wide figures over devices known to the ledger.
type DashboardStats struct {
	TotalDevices               int          `json:"totalDevices"`
	TotalCO2SavedKg            float64      `json:"totalCO2Saved"`
	TotalToxicWastePreventedKg float64      `json:"totalToxicWastePrevented"`
	AverageSustainabilityScore int          `json:"averageSustainabilityScore"`
	DevicesByStatus            StatusCounts `json:"devicesByStatus"`
	Skipped                    int          `json:"skipped"`
}
