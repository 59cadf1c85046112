package repository

import "ewaste-tracker/backend/internal/device/domain"

// Snapshot is the persisted form of the store: four maps keyed by device id.
type Snapshot struct {
	Metadata         map[uint64]domain.Metadata        `json:"deviceMetadata"`
	ProjectedImpacts map[uint64]domain.ImpactSnapshot  `json:"projectedImpacts"`
	VerifiedImpacts  map[uint64]domain.ImpactSnapshot  `json:"verifiedImpacts"`
	Timelines        map[uint64][]domain.TimelineEntry `json:"timelines"`
}

// NewSnapshot returns an empty snapshot with all maps allocated.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Metadata:         make(map[uint64]domain.Metadata),
		ProjectedImpacts: make(map[uint64]domain.ImpactSnapshot),
		VerifiedImpacts:  make(map[uint64]domain.ImpactSnapshot),
		Timelines:        make(map[uint64][]domain.TimelineEntry),
	}
}

// fill allocates any map a decoded snapshot left nil.
func (s *Snapshot) fill() {
	if s.Metadata == nil {
		s.Metadata = make(map[uint64]domain.Metadata)
	}
	if s.ProjectedImpacts == nil {
		s.ProjectedImpacts = make(map[uint64]domain.ImpactSnapshot)
	}
	if s.VerifiedImpacts == nil {
		s.VerifiedImpacts = make(map[uint64]domain.ImpactSnapshot)
	}
	if s.Timelines == nil {
		s.Timelines = make(map[uint64][]domain.TimelineEntry)
	}
}
