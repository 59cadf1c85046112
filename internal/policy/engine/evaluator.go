package engine

import (
	"context"

	devicedomain "ewaste-tracker/backend/internal/device/domain"
)

// Evaluator decides whether a requested lifecycle transition is allowed.
type Evaluator interface {
	// AllowTransition reports whether deviceID may move to target. A non-nil
	// error means the policy could not be evaluated, not that it denied.
	AllowTransition(ctx context.Context, deviceID uint64, target devicedomain.Status) (bool, error)
}
