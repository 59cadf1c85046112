package ledger

import (
	"fmt"

	"ewaste-tracker/backend/internal/device/domain"
)

// LedgerError wraps any failed interaction with the ledger: transport errors,
// reverted transactions, malformed responses.
type LedgerError struct {
	Op  string
	Err error
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("ledger: %s: %v", e.Op, e.Err)
}

func (e *LedgerError) Unwrap() error { return e.Err }

func (e *LedgerError) Is(target error) bool { return target == domain.ErrLedgerCall }

// IdentifierResolutionError means a registration was confirmed on the ledger
// but its device id could not be determined. ConfirmationRef identifies the
// confirmed transaction so an operator can reconcile by hand.
type IdentifierResolutionError struct {
	ConfirmationRef string
	Cause           error
}

func (e *IdentifierResolutionError) Error() string {
	return fmt.Sprintf("ledger: identifier resolution failed for %s: %v", e.ConfirmationRef, e.Cause)
}

func (e *IdentifierResolutionError) Unwrap() error { return e.Cause }

func (e *IdentifierResolutionError) Is(target error) bool {
	return target == domain.ErrIdentifierResolution
}
