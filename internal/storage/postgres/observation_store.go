package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"lightcurvedb/internal/domain"
	"lightcurvedb/internal/storage"
)

// ObservationStore implements storage.ObservationStore using PostgreSQL.
type ObservationStore struct {
	pool *Pool
}

// NewObservationStore creates a new ObservationStore.
func NewObservationStore(pool *Pool) *ObservationStore {
	return &ObservationStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ObservationStore = (*ObservationStore)(nil)

// InsertBatch inserts observations for one object in a single transaction.
// Rows colliding on (object_id, time) are skipped via ON CONFLICT DO NOTHING
// and the count actually inserted is returned. The whole batch rolls back on
// any other failure, including context cancellation.
func (s *ObservationStore) InsertBatch(ctx context.Context, objectID string, obs []domain.Observation) (int, error) {
	if objectID == "" {
		return 0, storage.ErrInvalidInput
	}
	if len(obs) == 0 {
		return 0, nil
	}
	for i := range obs {
		if obs[i].ObjectID != objectID {
			return 0, storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO observations (object_id, time, flux, uncertainty, quality)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (object_id, time) DO NOTHING
	`

	inserted := 0
	for i := range obs {
		quality := obs[i].Quality
		if quality == "" {
			quality = domain.QualityGood
		}

		tag, err := tx.Exec(ctx, query,
			objectID,
			obs[i].Timestamp,
			obs[i].Flux,
			obs[i].Uncertainty,
			quality,
		)
		if err != nil {
			if isForeignKeyError(err) {
				return 0, fmt.Errorf("object %s: %w", objectID, storage.ErrIntegrity)
			}
			return 0, fmt.Errorf("insert observation: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}

	return inserted, nil
}

// GetLightcurve returns the observations for an object sorted ascending by
// time, optionally restricted to the half-open interval [tr.Start, tr.End).
// A missing object is ErrNotFound; an existing object with no rows in range
// yields an empty slice. These are distinguishable outcomes.
func (s *ObservationStore) GetLightcurve(ctx context.Context, objectID string, tr *domain.TimeRange) ([]domain.Observation, error) {
	if err := s.checkObjectExists(ctx, objectID); err != nil {
		return nil, err
	}

	query := `
		SELECT object_id, time, flux, uncertainty, quality, created_at
		FROM observations
		WHERE object_id = $1
	`
	args := []any{objectID}

	if tr != nil {
		query += ` AND time >= $2 AND time < $3`
		args = append(args, tr.Start, tr.End)
	}
	query += ` ORDER BY time ASC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get lightcurve: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// UpdateQuality updates the quality flag of one observation, the only
// mutation permitted after persistence.
func (s *ObservationStore) UpdateQuality(ctx context.Context, objectID string, timestamp float64, flag domain.QualityFlag) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE observations SET quality = $3 WHERE object_id = $1 AND time = $2`,
		objectID, timestamp, flag,
	)
	if err != nil {
		return fmt.Errorf("update quality: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetStatistics computes flux summary statistics with database-side
// aggregation.
func (s *ObservationStore) GetStatistics(ctx context.Context, objectID string, tr *domain.TimeRange) (*domain.FluxStatistics, error) {
	if err := s.checkObjectExists(ctx, objectID); err != nil {
		return nil, err
	}

	query := `
		SELECT
			COUNT(*),
			COALESCE(MIN(time), 0),
			COALESCE(MAX(time), 0),
			COALESCE(MIN(flux), 0),
			COALESCE(MAX(flux), 0),
			COALESCE(AVG(flux), 0),
			COALESCE(STDDEV(flux), 0),
			COALESCE(PERCENTILE_CONT(0.5) WITHIN GROUP (ORDER BY flux), 0),
			COALESCE(
				SUM(flux / POWER(uncertainty, 2)) FILTER (WHERE uncertainty > 0)
					/ NULLIF(SUM(1 / POWER(uncertainty, 2)) FILTER (WHERE uncertainty > 0), 0),
				0
			)
		FROM observations
		WHERE object_id = $1
	`
	args := []any{objectID}

	if tr != nil {
		query += ` AND time >= $2 AND time < $3`
		args = append(args, tr.Start, tr.End)
	}

	stats := &domain.FluxStatistics{ObjectID: objectID}
	err := s.pool.QueryRow(ctx, query, args...).Scan(
		&stats.MeasurementCount,
		&stats.StartTime,
		&stats.EndTime,
		&stats.MinFlux,
		&stats.MaxFlux,
		&stats.MeanFlux,
		&stats.StddevFlux,
		&stats.MedianFlux,
		&stats.WeightedMeanFlux,
	)
	if err != nil {
		return nil, fmt.Errorf("get statistics: %w", err)
	}

	return stats, nil
}

// checkObjectExists distinguishes a missing object from an empty lightcurve.
func (s *ObservationStore) checkObjectExists(ctx context.Context, objectID string) error {
	var one int
	err := s.pool.QueryRow(ctx, `SELECT 1 FROM objects WHERE id = $1`, objectID).Scan(&one)
	if err != nil {
		if isNotFoundError(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("check object exists: %w", err)
	}
	return nil
}

// scanObservations scans multiple rows into a slice of Observation.
func scanObservations(rows pgx.Rows) ([]domain.Observation, error) {
	var obs []domain.Observation

	for rows.Next() {
		var o domain.Observation

		err := rows.Scan(
			&o.ObjectID,
			&o.Timestamp,
			&o.Flux,
			&o.Uncertainty,
			&o.Quality,
			&o.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan observation row: %w", err)
		}

		obs = append(obs, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observation rows: %w", err)
	}

	return obs, nil
}
