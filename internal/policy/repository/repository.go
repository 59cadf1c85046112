package repository

import (
	"context"

	"ewaste-tracker/backend/internal/policy/domain"
)

// Repository supplies an operator-provided lifecycle policy.
type Repository interface {
	// Get returns the configured policy, or nil if none is configured.
	Get(ctx context.Context) (*domain.Policy, error)
}
