package repository

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"ewaste-tracker/backend/internal/device/domain"
)

// saveTimeout bounds one snapshot write.
const saveTimeout = 10 * time.Second

// Store is the in-memory Repository backed by a SnapshotBackend. The snapshot
// is loaded once by NewStore and rewritten in full after every mutation.
// Persistence is best effort: a failed save is logged and the in-memory state
// stays authoritative for the life of the process.
type Store struct {
	mu      sync.RWMutex
	backend SnapshotBackend
	snap    *Snapshot
}

// NewStore loads the snapshot from backend. A missing or unreadable snapshot
// yields an empty store; load errors are logged, never returned.
func NewStore(ctx context.Context, backend SnapshotBackend) *Store {
	snap, err := backend.Load(ctx)
	switch {
	case err != nil:
		slog.Warn("store: load snapshot failed, starting empty", "error", err)
		snap = NewSnapshot()
	case snap == nil:
		snap = NewSnapshot()
	default:
		snap.fill()
		slog.Info("store: snapshot loaded",
			"devices", len(snap.Metadata),
			"verified_impacts", len(snap.VerifiedImpacts))
	}
	return &Store{backend: backend, snap: snap}
}

// GetMetadata returns the metadata for deviceID, or nil if absent.
func (s *Store) GetMetadata(ctx context.Context, deviceID uint64) (*domain.Metadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.snap.Metadata[deviceID]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

// GetProjectedImpact returns the projected snapshot for deviceID, or nil if absent.
func (s *Store) GetProjectedImpact(ctx context.Context, deviceID uint64) (*domain.ImpactSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.snap.ProjectedImpacts[deviceID]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

// GetVerifiedImpact returns the verified snapshot for deviceID, or nil if absent.
func (s *Store) GetVerifiedImpact(ctx context.Context, deviceID uint64) (*domain.ImpactSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.snap.VerifiedImpacts[deviceID]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

// GetTimeline returns a copy of the timeline for deviceID, or nil if absent.
func (s *Store) GetTimeline(ctx context.Context, deviceID uint64) ([]domain.TimelineEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries, ok := s.snap.Timelines[deviceID]
	if !ok {
		return nil, nil
	}
	out := make([]domain.TimelineEntry, len(entries))
	copy(out, entries)
	return out, nil
}

// SaveMetadata stores m, replacing any previous metadata for the device.
func (s *Store) SaveMetadata(ctx context.Context, m *domain.Metadata) error {
	if m == nil {
		return errors.New("store: nil metadata")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Metadata[m.DeviceID] = *m
	s.persist(ctx, "save metadata")
	return nil
}

// SaveProjectedImpact stores the projected snapshot for the device.
func (s *Store) SaveProjectedImpact(ctx context.Context, v *domain.ImpactSnapshot) error {
	if v == nil {
		return errors.New("store: nil projected impact")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.ProjectedImpacts[v.DeviceID] = *v
	s.persist(ctx, "save projected impact")
	return nil
}

// SaveVerifiedImpact stores the verified snapshot for the device.
func (s *Store) SaveVerifiedImpact(ctx context.Context, v *domain.ImpactSnapshot) error {
	if v == nil {
		return errors.New("store: nil verified impact")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.VerifiedImpacts[v.DeviceID] = *v
	s.persist(ctx, "save verified impact")
	return nil
}

// AppendTimeline appends entry to the device's timeline. A timestamp earlier
// than the previous entry's is raised to it so the timeline never goes back in time.
func (s *Store) AppendTimeline(ctx context.Context, deviceID uint64, entry domain.TimelineEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.snap.Timelines[deviceID]
	if n := len(entries); n > 0 && entry.Timestamp.Before(entries[n-1].Timestamp) {
		entry.Timestamp = entries[n-1].Timestamp
	}
	s.snap.Timelines[deviceID] = append(entries, entry)
	s.persist(ctx, "append timeline")
	return nil
}

// persist must be called with mu held for writing. The save outlives the
// caller's cancellation: the change it records is already on the ledger.
func (s *Store) persist(ctx context.Context, op string) {
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()
	if err := s.backend.Save(saveCtx, s.snap); err != nil {
		slog.Error("store: persist snapshot failed", "op", op, "error", err)
	}
}
