package memory

import (
	"context"
	"errors"
	"math"
	"testing"

	"lightcurvedb/internal/domain"
	"lightcurvedb/internal/storage"
)

func TestObservationStore_InsertBatch_CountsInserted(t *testing.T) {
	objects, observations := NewStores()
	ctx := context.Background()

	if _, err := objects.GetOrCreate(ctx, testObject(t, "obj-1")); err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	inserted, err := observations.InsertBatch(ctx, "obj-1", []domain.Observation{
		testObservation(t, "obj-1", 1, 1.0),
		testObservation(t, "obj-1", 2, 1.1),
		testObservation(t, "obj-1", 3, 1.2),
	})
	if err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}
	if inserted != 3 {
		t.Errorf("Expected 3 inserted, got %d", inserted)
	}
}

func TestObservationStore_InsertBatch_SkipsDuplicates(t *testing.T) {
	objects, observations := NewStores()
	ctx := context.Background()

	if _, err := objects.GetOrCreate(ctx, testObject(t, "obj-1")); err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	if _, err := observations.InsertBatch(ctx, "obj-1", []domain.Observation{
		testObservation(t, "obj-1", 1, 1.0),
		testObservation(t, "obj-1", 2, 1.1),
	}); err != nil {
		t.Fatalf("First InsertBatch failed: %v", err)
	}

	// Overlapping batch: timestamps 2 and 3, with a conflicting flux at 2.
	inserted, err := observations.InsertBatch(ctx, "obj-1", []domain.Observation{
		testObservation(t, "obj-1", 2, 99.0),
		testObservation(t, "obj-1", 3, 1.2),
	})
	if err != nil {
		t.Fatalf("Second InsertBatch failed: %v", err)
	}
	if inserted != 1 {
		t.Errorf("Expected 1 inserted, got %d", inserted)
	}

	// The first-inserted flux at timestamp 2 wins.
	obs, err := observations.GetLightcurve(ctx, "obj-1", nil)
	if err != nil {
		t.Fatalf("GetLightcurve failed: %v", err)
	}
	if len(obs) != 3 {
		t.Fatalf("Expected 3 observations, got %d", len(obs))
	}
	if obs[1].Timestamp != 2 || obs[1].Flux != 1.1 {
		t.Errorf("Duplicate overwrote existing row: ts=%v flux=%v", obs[1].Timestamp, obs[1].Flux)
	}
}

func TestObservationStore_InsertBatch_IntraBatchDuplicate(t *testing.T) {
	objects, observations := NewStores()
	ctx := context.Background()

	if _, err := objects.GetOrCreate(ctx, testObject(t, "obj-1")); err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	inserted, err := observations.InsertBatch(ctx, "obj-1", []domain.Observation{
		testObservation(t, "obj-1", 5, 1.0),
		testObservation(t, "obj-1", 5, 2.0),
	})
	if err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}
	if inserted != 1 {
		t.Errorf("Expected 1 inserted, got %d", inserted)
	}

	obs, _ := observations.GetLightcurve(ctx, "obj-1", nil)
	if len(obs) != 1 || obs[0].Flux != 1.0 {
		t.Errorf("Expected first row of the batch to win, got %+v", obs)
	}
}

func TestObservationStore_InsertBatch_UnknownObject(t *testing.T) {
	_, observations := NewStores()

	_, err := observations.InsertBatch(context.Background(), "nonexistent", []domain.Observation{
		testObservation(t, "nonexistent", 1, 1.0),
	})
	if !errors.Is(err, storage.ErrIntegrity) {
		t.Errorf("Expected ErrIntegrity, got %v", err)
	}
}

func TestObservationStore_InsertBatch_MismatchedObjectID(t *testing.T) {
	objects, observations := NewStores()
	ctx := context.Background()

	if _, err := objects.GetOrCreate(ctx, testObject(t, "obj-1")); err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	_, err := observations.InsertBatch(ctx, "obj-1", []domain.Observation{
		testObservation(t, "obj-2", 1, 1.0),
	})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestObservationStore_GetLightcurve_OrderedAscending(t *testing.T) {
	objects, observations := NewStores()
	ctx := context.Background()

	if _, err := objects.GetOrCreate(ctx, testObject(t, "obj-1")); err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	// Insert out of order.
	if _, err := observations.InsertBatch(ctx, "obj-1", []domain.Observation{
		testObservation(t, "obj-1", 3, 1.2),
		testObservation(t, "obj-1", 1, 1.0),
		testObservation(t, "obj-1", 2, 1.1),
	}); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	obs, err := observations.GetLightcurve(ctx, "obj-1", nil)
	if err != nil {
		t.Fatalf("GetLightcurve failed: %v", err)
	}
	for i := 1; i < len(obs); i++ {
		if obs[i-1].Timestamp >= obs[i].Timestamp {
			t.Errorf("Not strictly ascending at %d: %v >= %v", i, obs[i-1].Timestamp, obs[i].Timestamp)
		}
	}
}

func TestObservationStore_GetLightcurve_RangePartitionUnion(t *testing.T) {
	objects, observations := NewStores()
	ctx := context.Background()

	if _, err := objects.GetOrCreate(ctx, testObject(t, "obj-1")); err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	var batch []domain.Observation
	for i := 0; i < 10; i++ {
		batch = append(batch, testObservation(t, "obj-1", float64(i), 1.0+float64(i)*0.01))
	}
	if _, err := observations.InsertBatch(ctx, "obj-1", batch); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	// [0, 5) and [5, 10) must partition the full history: half-open ranges
	// put the boundary point in exactly one side.
	left, err := observations.GetLightcurve(ctx, "obj-1", &domain.TimeRange{Start: 0, End: 5})
	if err != nil {
		t.Fatalf("Left query failed: %v", err)
	}
	right, err := observations.GetLightcurve(ctx, "obj-1", &domain.TimeRange{Start: 5, End: 10})
	if err != nil {
		t.Fatalf("Right query failed: %v", err)
	}
	full, err := observations.GetLightcurve(ctx, "obj-1", nil)
	if err != nil {
		t.Fatalf("Full query failed: %v", err)
	}

	if len(left)+len(right) != len(full) {
		t.Errorf("Partition sizes do not add up: %d + %d != %d", len(left), len(right), len(full))
	}
	if len(left) != 5 || len(right) != 5 {
		t.Errorf("Expected 5+5 split, got %d+%d", len(left), len(right))
	}
}

func TestObservationStore_GetLightcurve_NotFoundVsEmpty(t *testing.T) {
	objects, observations := NewStores()
	ctx := context.Background()

	// Unknown object: NotFound.
	_, err := observations.GetLightcurve(ctx, "nonexistent", nil)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown object, got %v", err)
	}

	// Known object with no observations: empty result, no error.
	if _, err := objects.GetOrCreate(ctx, testObject(t, "obj-1")); err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	obs, err := observations.GetLightcurve(ctx, "obj-1", nil)
	if err != nil {
		t.Errorf("Expected empty curve without error, got %v", err)
	}
	if len(obs) != 0 {
		t.Errorf("Expected empty curve, got %d observations", len(obs))
	}
}

func TestObservationStore_UpdateQuality(t *testing.T) {
	objects, observations := NewStores()
	ctx := context.Background()

	if _, err := objects.GetOrCreate(ctx, testObject(t, "obj-1")); err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if _, err := observations.InsertBatch(ctx, "obj-1", []domain.Observation{
		testObservation(t, "obj-1", 1, 1.0),
	}); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	if err := observations.UpdateQuality(ctx, "obj-1", 1, domain.QualitySuspect); err != nil {
		t.Fatalf("UpdateQuality failed: %v", err)
	}

	obs, _ := observations.GetLightcurve(ctx, "obj-1", nil)
	if obs[0].Quality != domain.QualitySuspect {
		t.Errorf("Quality not updated: got %s", obs[0].Quality)
	}

	if err := observations.UpdateQuality(ctx, "obj-1", 99, domain.QualityBad); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown timestamp, got %v", err)
	}
}

func TestObservationStore_GetStatistics(t *testing.T) {
	objects, observations := NewStores()
	ctx := context.Background()

	if _, err := objects.GetOrCreate(ctx, testObject(t, "obj-1")); err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if _, err := observations.InsertBatch(ctx, "obj-1", []domain.Observation{
		testObservation(t, "obj-1", 1, 1.0),
		testObservation(t, "obj-1", 2, 2.0),
		testObservation(t, "obj-1", 3, 3.0),
		testObservation(t, "obj-1", 4, 4.0),
	}); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	stats, err := observations.GetStatistics(ctx, "obj-1", nil)
	if err != nil {
		t.Fatalf("GetStatistics failed: %v", err)
	}

	if stats.MeasurementCount != 4 {
		t.Errorf("Count mismatch: got %d", stats.MeasurementCount)
	}
	if stats.MinFlux != 1.0 || stats.MaxFlux != 4.0 {
		t.Errorf("Min/max mismatch: got %v/%v", stats.MinFlux, stats.MaxFlux)
	}
	if stats.MeanFlux != 2.5 {
		t.Errorf("Mean mismatch: got %v", stats.MeanFlux)
	}
	if stats.MedianFlux != 2.5 {
		t.Errorf("Median mismatch: got %v", stats.MedianFlux)
	}
	// Sample stddev of {1,2,3,4}.
	want := math.Sqrt(5.0 / 3.0)
	if math.Abs(stats.StddevFlux-want) > 1e-12 {
		t.Errorf("Stddev mismatch: got %v, want %v", stats.StddevFlux, want)
	}
	// All uncertainties are equal, so the weighted mean equals the mean.
	if math.Abs(stats.WeightedMeanFlux-stats.MeanFlux) > 1e-12 {
		t.Errorf("Weighted mean mismatch: got %v, want %v", stats.WeightedMeanFlux, stats.MeanFlux)
	}
	if stats.StartTime != 1 || stats.EndTime != 4 {
		t.Errorf("Time span mismatch: got %v..%v", stats.StartTime, stats.EndTime)
	}
}

func TestObservationStore_GetStatistics_Empty(t *testing.T) {
	objects, observations := NewStores()
	ctx := context.Background()

	if _, err := objects.GetOrCreate(ctx, testObject(t, "obj-1")); err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	stats, err := observations.GetStatistics(ctx, "obj-1", nil)
	if err != nil {
		t.Fatalf("GetStatistics failed: %v", err)
	}
	if stats.MeasurementCount != 0 {
		t.Errorf("Expected zero count, got %d", stats.MeasurementCount)
	}
}
