package repository

import (
	"context"

	"ewaste-tracker/backend/internal/device/domain"
)

// Repository is the local record store for device satellite data: metadata,
// impact snapshots and timelines, all keyed by ledger device id.
// Getters return nil (and no error) when the key is absent.
type Repository interface {
	GetMetadata(ctx context.Context, deviceID uint64) (*domain.Metadata, error)
	GetProjectedImpact(ctx context.Context, deviceID uint64) (*domain.ImpactSnapshot, error)
	GetVerifiedImpact(ctx context.Context, deviceID uint64) (*domain.ImpactSnapshot, error)
	GetTimeline(ctx context.Context, deviceID uint64) ([]domain.TimelineEntry, error)
	SaveMetadata(ctx context.Context, m *domain.Metadata) error
	SaveProjectedImpact(ctx context.Context, s *domain.ImpactSnapshot) error
	SaveVerifiedImpact(ctx context.Context, s *domain.ImpactSnapshot) error
	AppendTimeline(ctx context.Context, deviceID uint64, entry domain.TimelineEntry) error
}

// SnapshotBackend loads and saves the consolidated snapshot.
type SnapshotBackend interface {
	// Load returns nil, nil when no snapshot has been saved yet.
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, s *Snapshot) error
}
