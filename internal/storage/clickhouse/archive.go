package clickhouse

import (
	"context"
	"fmt"

	"lightcurvedb/internal/domain"
	"lightcurvedb/internal/storage"
)

// Archive is an append-only mirror of the observations table used for
// statistics at analytics scale. The authoritative copy stays in the
// relational store; the archive only grows.
//
// MergeTree does not enforce uniqueness at insert time, so duplicate
// skipping happens via explicit existence checks before the batch insert.
type Archive struct {
	conn *Conn
}

// NewArchive creates a new Archive.
func NewArchive(conn *Conn) *Archive {
	return &Archive{conn: conn}
}

// InsertBatch appends observations for one object, skipping rows whose
// (object_id, time) already exists in the archive. Returns the count
// actually inserted.
func (a *Archive) InsertBatch(ctx context.Context, objectID string, obs []domain.Observation) (int, error) {
	if objectID == "" {
		return 0, storage.ErrInvalidInput
	}
	if len(obs) == 0 {
		return 0, nil
	}

	existing, err := a.existingTimestamps(ctx, objectID)
	if err != nil {
		return 0, err
	}

	batch, err := a.conn.PrepareBatch(ctx, `
		INSERT INTO observations_archive (object_id, time, flux, uncertainty, quality)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare batch: %w", err)
	}

	inserted := 0
	for i := range obs {
		if _, dup := existing[obs[i].Timestamp]; dup {
			continue
		}
		existing[obs[i].Timestamp] = struct{}{}

		quality := obs[i].Quality
		if quality == "" {
			quality = domain.QualityGood
		}

		err = batch.Append(
			objectID,
			obs[i].Timestamp,
			obs[i].Flux,
			obs[i].Uncertainty,
			string(quality),
		)
		if err != nil {
			return 0, fmt.Errorf("append observation to batch: %w", err)
		}
		inserted++
	}

	if inserted == 0 {
		if err := batch.Abort(); err != nil {
			return 0, fmt.Errorf("abort empty batch: %w", err)
		}
		return 0, nil
	}

	if err := batch.Send(); err != nil {
		return 0, fmt.Errorf("send batch: %w", err)
	}

	return inserted, nil
}

// existingTimestamps loads the set of timestamps already archived for an
// object.
func (a *Archive) existingTimestamps(ctx context.Context, objectID string) (map[float64]struct{}, error) {
	rows, err := a.conn.Query(ctx,
		`SELECT time FROM observations_archive WHERE object_id = ?`, objectID)
	if err != nil {
		return nil, fmt.Errorf("query existing timestamps: %w", err)
	}
	defer rows.Close()

	existing := make(map[float64]struct{})
	for rows.Next() {
		var ts float64
		if err := rows.Scan(&ts); err != nil {
			return nil, fmt.Errorf("scan timestamp: %w", err)
		}
		existing[ts] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timestamps: %w", err)
	}

	return existing, nil
}

// GetStatistics computes flux summary statistics with ClickHouse aggregate
// functions, optionally restricted to the half-open interval [tr.Start, tr.End).
func (a *Archive) GetStatistics(ctx context.Context, objectID string, tr *domain.TimeRange) (*domain.FluxStatistics, error) {
	query := `
		SELECT
			toInt64(count()),
			coalesce(min(time), 0),
			coalesce(max(time), 0),
			coalesce(min(flux), 0),
			coalesce(max(flux), 0),
			coalesce(avg(flux), 0),
			coalesce(stddevSamp(flux), 0),
			coalesce(quantile(0.5)(flux), 0),
			coalesce(
				sumIf(flux / (uncertainty * uncertainty), uncertainty > 0)
					/ nullIf(sumIf(1 / (uncertainty * uncertainty), uncertainty > 0), 0),
				0
			)
		FROM observations_archive
		WHERE object_id = ?
	`
	args := []any{objectID}

	if tr != nil {
		query += ` AND time >= ? AND time < ?`
		args = append(args, tr.Start, tr.End)
	}

	var count int64
	stats := &domain.FluxStatistics{ObjectID: objectID}
	err := a.conn.QueryRow(ctx, query, args...).Scan(
		&count,
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
	stats.MeasurementCount = int(count)

	return stats, nil
}
