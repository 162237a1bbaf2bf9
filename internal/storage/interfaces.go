package storage

import (
	"context"

	"lightcurvedb/internal/domain"
)

// ObjectStore provides access to tracked object storage.
//
// Every method runs inside its own transaction; no implementation holds a
// transaction open across calls.
type ObjectStore interface {
	// GetOrCreate inserts the object if its ID is new, otherwise returns the
	// existing row unchanged (stored metadata is never overwritten). Safe
	// under concurrent callers racing on the same ID: the unique constraint
	// resolves the race and the loser re-reads, at most once, before
	// surfacing ErrConflict.
	GetOrCreate(ctx context.Context, obj *domain.TrackedObject) (*domain.TrackedObject, error)

	// Get retrieves an object by ID. Returns ErrNotFound if it does not exist.
	Get(ctx context.Context, id string) (*domain.TrackedObject, error)

	// List retrieves all objects ordered by ID.
	List(ctx context.Context) ([]*domain.TrackedObject, error)

	// Delete removes an object according to the deletion policy. Under
	// DeleteRestrict it returns ErrIntegrity when observations exist and
	// removes nothing. Returns ErrNotFound for an unknown ID.
	Delete(ctx context.Context, id string, policy domain.DeletionPolicy) error
}

// ObservationStore provides access to flux observation storage.
type ObservationStore interface {
	// InsertBatch inserts observations for one object in a single
	// transaction. Rows violating the (object_id, timestamp) uniqueness
	// invariant are skipped, not errored; the count actually inserted is
	// returned so callers can detect partial duplication. Returns
	// ErrIntegrity when the object does not exist.
	InsertBatch(ctx context.Context, objectID string, obs []domain.Observation) (int, error)

	// GetLightcurve returns the observations for an object sorted ascending
	// by timestamp, optionally restricted to the half-open interval
	// [tr.Start, tr.End). Returns ErrNotFound when the object does not
	// exist; an existing object with no rows in range yields an empty slice.
	GetLightcurve(ctx context.Context, objectID string, tr *domain.TimeRange) ([]domain.Observation, error)

	// UpdateQuality updates the quality flag of the observation at the given
	// timestamp. This is the only mutation permitted on a persisted
	// observation. Returns ErrNotFound when no such row exists.
	UpdateQuality(ctx context.Context, objectID string, timestamp float64, flag domain.QualityFlag) error

	// GetStatistics computes flux summary statistics for an object,
	// optionally restricted to [tr.Start, tr.End). Returns ErrNotFound when
	// the object does not exist.
	GetStatistics(ctx context.Context, objectID string, tr *domain.TimeRange) (*domain.FluxStatistics, error)
}
