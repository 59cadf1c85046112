package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is; the concrete types below carry detail.
var (
	ErrValidation           = errors.New("validation error")
	ErrNotFound             = errors.New("not found")
	ErrInvalidDeviceType    = errors.New("invalid device type")
	ErrLedgerCall           = errors.New("ledger call failed")
	ErrIdentifierResolution = errors.New("identifier resolution failed")
)

// ValidationError reports bad input. It is raised before any ledger call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NewValidationError returns a ValidationError for field.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError reports that id is absent from the named store.
type NotFoundError struct {
	Store string
	ID    uint64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("device %d not found in %s", e.ID, e.Store)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }
