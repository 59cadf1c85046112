package domain

import "time"

// Policy is a Rego module governing lifecycle status transitions.
type Policy struct {
	// Name is the module file name reported in compile errors.
	Name     string
	Rules    string
	LoadedAt time.Time
}
