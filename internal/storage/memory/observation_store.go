package memory

import (
	"context"
	"math"
	"sort"
	"time"

	"lightcurvedb/internal/domain"
	"lightcurvedb/internal/storage"
)

// InsertBatch inserts observations for one object. Rows colliding on
// (object_id, timestamp) with existing data or earlier rows of the same
// batch are skipped; the count actually inserted is returned.
func (s *ObservationStore) InsertBatch(_ context.Context, objectID string, obs []domain.Observation) (int, error) {
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

	if !s.objects.exists(objectID) {
		return 0, storage.ErrIntegrity
	}

	s.observations.mu.Lock()
	defer s.observations.mu.Unlock()

	rows := s.observations.rows[objectID]
	if rows == nil {
		rows = make(map[float64]*domain.Observation)
		s.observations.rows[objectID] = rows
	}

	inserted := 0
	now := time.Now().UnixMilli()
	for i := range obs {
		if _, exists := rows[obs[i].Timestamp]; exists {
			continue // duplicate, first-inserted row wins
		}
		cp := obs[i]
		if cp.Quality == "" {
			cp.Quality = domain.QualityGood
		}
		cp.CreatedAt = now
		rows[cp.Timestamp] = &cp
		inserted++
	}

	return inserted, nil
}

// GetLightcurve returns observations sorted ascending by timestamp,
// optionally restricted to the half-open interval [tr.Start, tr.End).
func (s *ObservationStore) GetLightcurve(_ context.Context, objectID string, tr *domain.TimeRange) ([]domain.Observation, error) {
	if !s.objects.exists(objectID) {
		return nil, storage.ErrNotFound
	}

	s.observations.mu.RLock()
	defer s.observations.mu.RUnlock()

	var result []domain.Observation
	for _, o := range s.observations.rows[objectID] {
		if tr != nil && !tr.Contains(o.Timestamp) {
			continue
		}
		result = append(result, *o)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp < result[j].Timestamp
	})

	return result, nil
}

// UpdateQuality updates the quality flag of one observation.
func (s *ObservationStore) UpdateQuality(_ context.Context, objectID string, timestamp float64, flag domain.QualityFlag) error {
	s.observations.mu.Lock()
	defer s.observations.mu.Unlock()

	o, ok := s.observations.rows[objectID][timestamp]
	if !ok {
		return storage.ErrNotFound
	}
	o.Quality = flag
	return nil
}

// GetStatistics computes flux summary statistics in memory.
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
		if f < stats.MinFlux {
			stats.MinFlux = f
		}
		if f > stats.MaxFlux {
			stats.MaxFlux = f
		}
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
