package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"lightcurvedb/internal/domain"
	"lightcurvedb/internal/storage"
)

// ObservationStore implements storage.ObservationStore using SQLite.
type ObservationStore struct {
	db *DB
}

// NewObservationStore creates a new ObservationStore.
func NewObservationStore(db *DB) *ObservationStore {
	return &ObservationStore{db: db}
}

// Compile-time interface check.
var _ storage.ObservationStore = (*ObservationStore)(nil)

// InsertBatch inserts observations for one object in a single transaction.
// Duplicates on (object_id, time) are skipped via INSERT OR IGNORE and the
// count actually inserted is returned.
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := checkObjectExists(ctx, tx, objectID); err != nil {
		if err == storage.ErrNotFound {
			return 0, fmt.Errorf("object %s: %w", objectID, storage.ErrIntegrity)
		}
		return 0, err
	}

	query := `
		INSERT OR IGNORE INTO observations (object_id, time, flux, uncertainty, quality, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	inserted := 0
	now := time.Now().UnixMilli()
	for i := range obs {
		quality := obs[i].Quality
		if quality == "" {
			quality = domain.QualityGood
		}

		res, err := tx.ExecContext(ctx, query,
			objectID, obs[i].Timestamp, obs[i].Flux, obs[i].Uncertainty, quality, now)
		if err != nil {
			return 0, fmt.Errorf("insert observation: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected: %w", err)
		}
		inserted += int(affected)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}

	return inserted, nil
}

// GetLightcurve returns observations sorted ascending by time, optionally
// restricted to the half-open interval [tr.Start, tr.End).
func (s *ObservationStore) GetLightcurve(ctx context.Context, objectID string, tr *domain.TimeRange) ([]domain.Observation, error) {
	if err := checkObjectExists(ctx, s.db.DB, objectID); err != nil {
		return nil, err
	}

	query := `
		SELECT object_id, time, flux, uncertainty, quality, created_at
		FROM observations
		WHERE object_id = ?
	`
	args := []any{objectID}

	if tr != nil {
		query += ` AND time >= ? AND time < ?`
		args = append(args, tr.Start, tr.End)
	}
	query += ` ORDER BY time ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get lightcurve: %w", err)
	}
	defer rows.Close()

	var obs []domain.Observation
	for rows.Next() {
		var o domain.Observation
		if err := rows.Scan(&o.ObjectID, &o.Timestamp, &o.Flux, &o.Uncertainty, &o.Quality, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan observation row: %w", err)
		}
		obs = append(obs, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observation rows: %w", err)
	}

	return obs, nil
}

// UpdateQuality updates the quality flag of one observation.
func (s *ObservationStore) UpdateQuality(ctx context.Context, objectID string, timestamp float64, flag domain.QualityFlag) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE observations SET quality = ? WHERE object_id = ? AND time = ?`,
		flag, objectID, timestamp)
	if err != nil {
		return fmt.Errorf("update quality: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetStatistics computes flux summary statistics. SQLite lacks percentile
// aggregates, so the fluxes are pulled and summarized here.
func (s *ObservationStore) GetStatistics(ctx context.Context, objectID string, tr *domain.TimeRange) (*domain.FluxStatistics, error) {
	obs, err := s.GetLightcurve(ctx, objectID, tr)
	if err != nil {
		return nil, err
	}

	stats := &domain.FluxStatistics{ObjectID: objectID, MeasurementCount: len(obs)}
	if len(obs) == 0 {
		return stats, nil
	}

	stats.StartTime = obs[0].Timestamp
	stats.EndTime = obs[len(obs)-1].Timestamp

	fluxes := make([]float64, len(obs))
	var sum, weightedSum, weightSum float64
	stats.MinFlux = obs[0].Flux
	stats.MaxFlux = obs[0].Flux

	for i := range obs {
		f := obs[i].Flux
		fluxes[i] = f
		sum += f
		stats.MinFlux = math.Min(stats.MinFlux, f)
		stats.MaxFlux = math.Max(stats.MaxFlux, f)
		if u := obs[i].Uncertainty; u != nil && *u > 0 {
			w := 1 / (*u * *u)
			weightedSum += f * w
			weightSum += w
		}
	}
	stats.MeanFlux = sum / float64(len(obs))

	if len(obs) > 1 {
		var ss float64
		for _, f := range fluxes {
			d := f - stats.MeanFlux
			ss += d * d
		}
		stats.StddevFlux = math.Sqrt(ss / float64(len(obs)-1))
	}

	sort.Float64s(fluxes)
	mid := len(fluxes) / 2
	if len(fluxes)%2 == 0 {
		stats.MedianFlux = (fluxes[mid-1] + fluxes[mid]) / 2
	} else {
		stats.MedianFlux = fluxes[mid]
	}

	if weightSum > 0 {
		stats.WeightedMeanFlux = weightedSum / weightSum
	}

	return stats, nil
}

// queryRower covers *sql.DB and *sql.Tx.
type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func checkObjectExists(ctx context.Context, q queryRower, objectID string) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM objects WHERE id = ?`, objectID).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("check object exists: %w", err)
	}
	return nil
}
