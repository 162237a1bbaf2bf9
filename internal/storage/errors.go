package storage

import "errors"

// Storage errors shared by all backends.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when a single-row insert collides with an
	// existing key. Batch observation inserts skip duplicates instead.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrConflict is returned when a uniqueness race could not be resolved
	// after the one bounded retry in GetOrCreate.
	ErrConflict = errors.New("store conflict")

	// ErrIntegrity is returned on referential or policy violations, e.g.
	// deleting an object under the restrict policy while observations exist,
	// or inserting observations for a nonexistent object.
	ErrIntegrity = errors.New("integrity violation")

	// ErrInvalidInput is returned when input validation fails at the store
	// boundary.
	ErrInvalidInput = errors.New("invalid input")
)
