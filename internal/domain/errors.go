package domain

import "fmt"

// ValidationError describes a single rejected field on an entity.
// Validation failures are caller faults and are never retried.
type ValidationError struct {
	Entity string // "object" or "observation"
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s: %s", e.Entity, e.Field, e.Reason)
}

func validationErr(entity, field, reason string) error {
	return &ValidationError{Entity: entity, Field: field, Reason: reason}
}
