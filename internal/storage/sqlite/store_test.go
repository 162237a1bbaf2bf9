package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lightcurvedb/internal/domain"
	"lightcurvedb/internal/storage"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err, "failed to open sqlite database")
	t.Cleanup(func() { db.Close() })

	return db
}

func newTestObject(t *testing.T, id string) *domain.TrackedObject {
	t.Helper()
	ra := 42.0
	dec := -10.0
	obj, err := domain.NewTrackedObject(id, "source "+id, &ra, &dec,
		&domain.ObjectMetadata{CrossMatches: []domain.CrossMatch{{Name: "ACT-00001"}}})
	require.NoError(t, err)
	return obj
}

func newTestObservation(t *testing.T, objectID string, ts, flux float64) domain.Observation {
	t.Helper()
	u := 0.1
	o, err := domain.NewObservation(objectID, ts, flux, &u)
	require.NoError(t, err)
	return *o
}

func TestObjectStore_GetOrCreate(t *testing.T) {
	db := setupTestDB(t)
	store := NewObjectStore(db)
	ctx := context.Background()

	created, err := store.GetOrCreate(ctx, newTestObject(t, "obj-1"))
	require.NoError(t, err)
	assert.Equal(t, "obj-1", created.ID)
	assert.NotZero(t, created.CreatedAt)
	require.NotNil(t, created.Extra)
	assert.Len(t, created.Extra.CrossMatches, 1)

	// Re-create with a different label: the existing row wins.
	changed := newTestObject(t, "obj-1")
	changed.Label = "different label"
	existing, err := store.GetOrCreate(ctx, changed)
	require.NoError(t, err)
	assert.Equal(t, created.Label, existing.Label)
	assert.Equal(t, created.CreatedAt, existing.CreatedAt)

	all, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestObjectStore_GetNotFound(t *testing.T) {
	db := setupTestDB(t)
	store := NewObjectStore(db)

	_, err := store.Get(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestObjectStore_Delete(t *testing.T) {
	db := setupTestDB(t)
	objects := NewObjectStore(db)
	observations := NewObservationStore(db)
	ctx := context.Background()

	_, err := objects.GetOrCreate(ctx, newTestObject(t, "obj-1"))
	require.NoError(t, err)
	_, err = observations.InsertBatch(ctx, "obj-1", []domain.Observation{
		newTestObservation(t, "obj-1", 1, 1.0),
	})
	require.NoError(t, err)

	// Restrict refuses while observations reference the object.
	err = objects.Delete(ctx, "obj-1", domain.DeleteRestrict)
	assert.ErrorIs(t, err, storage.ErrIntegrity)

	obs, err := observations.GetLightcurve(ctx, "obj-1", nil)
	require.NoError(t, err)
	assert.Len(t, obs, 1, "observations must survive a refused delete")

	// Cascade removes everything.
	err = objects.Delete(ctx, "obj-1", domain.DeleteCascade)
	require.NoError(t, err)

	_, err = objects.Get(ctx, "obj-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = observations.GetLightcurve(ctx, "obj-1", nil)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = objects.Delete(ctx, "obj-1", domain.DeleteCascade)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestObservationStore_InsertBatch(t *testing.T) {
	db := setupTestDB(t)
	objects := NewObjectStore(db)
	observations := NewObservationStore(db)
	ctx := context.Background()

	_, err := objects.GetOrCreate(ctx, newTestObject(t, "obj-1"))
	require.NoError(t, err)

	inserted, err := observations.InsertBatch(ctx, "obj-1", []domain.Observation{
		newTestObservation(t, "obj-1", 1, 1.0),
		newTestObservation(t, "obj-1", 2, 1.1),
		newTestObservation(t, "obj-1", 3, 1.2),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, inserted)

	// Overlapping batch: only the new timestamp lands.
	inserted, err = observations.InsertBatch(ctx, "obj-1", []domain.Observation{
		newTestObservation(t, "obj-1", 2, 99.0),
		newTestObservation(t, "obj-1", 4, 1.3),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)

	obs, err := observations.GetLightcurve(ctx, "obj-1", nil)
	require.NoError(t, err)
	require.Len(t, obs, 4)
	assert.Equal(t, 1.1, obs[1].Flux, "first-inserted flux wins on duplicate timestamp")
}

func TestObservationStore_InsertBatch_UnknownObject(t *testing.T) {
	db := setupTestDB(t)
	observations := NewObservationStore(db)

	_, err := observations.InsertBatch(context.Background(), "nonexistent", []domain.Observation{
		newTestObservation(t, "nonexistent", 1, 1.0),
	})
	assert.ErrorIs(t, err, storage.ErrIntegrity)
}

func TestObservationStore_GetLightcurve_Range(t *testing.T) {
	db := setupTestDB(t)
	objects := NewObjectStore(db)
	observations := NewObservationStore(db)
	ctx := context.Background()

	_, err := objects.GetOrCreate(ctx, newTestObject(t, "obj-1"))
	require.NoError(t, err)

	var batch []domain.Observation
	for i := 0; i < 10; i++ {
		batch = append(batch, newTestObservation(t, "obj-1", float64(i), 1.0))
	}
	_, err = observations.InsertBatch(ctx, "obj-1", batch)
	require.NoError(t, err)

	// Half-open: the end boundary is excluded.
	obs, err := observations.GetLightcurve(ctx, "obj-1", &domain.TimeRange{Start: 2, End: 5})
	require.NoError(t, err)
	require.Len(t, obs, 3)
	assert.Equal(t, 2.0, obs[0].Timestamp)
	assert.Equal(t, 4.0, obs[2].Timestamp)

	// Unknown object vs empty range of a known object.
	_, err = observations.GetLightcurve(ctx, "nonexistent", nil)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	obs, err = observations.GetLightcurve(ctx, "obj-1", &domain.TimeRange{Start: 100, End: 200})
	require.NoError(t, err)
	assert.Empty(t, obs)
}

func TestObservationStore_UpdateQuality(t *testing.T) {
	db := setupTestDB(t)
	objects := NewObjectStore(db)
	observations := NewObservationStore(db)
	ctx := context.Background()

	_, err := objects.GetOrCreate(ctx, newTestObject(t, "obj-1"))
	require.NoError(t, err)
	_, err = observations.InsertBatch(ctx, "obj-1", []domain.Observation{
		newTestObservation(t, "obj-1", 1.5, 1.0),
	})
	require.NoError(t, err)

	require.NoError(t, observations.UpdateQuality(ctx, "obj-1", 1.5, domain.QualityBad))

	obs, err := observations.GetLightcurve(ctx, "obj-1", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.QualityBad, obs[0].Quality)

	err = observations.UpdateQuality(ctx, "obj-1", 99, domain.QualityBad)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestObservationStore_GetStatistics(t *testing.T) {
	db := setupTestDB(t)
	objects := NewObjectStore(db)
	observations := NewObservationStore(db)
	ctx := context.Background()

	_, err := objects.GetOrCreate(ctx, newTestObject(t, "obj-1"))
	require.NoError(t, err)
	_, err = observations.InsertBatch(ctx, "obj-1", []domain.Observation{
		newTestObservation(t, "obj-1", 1, 2.0),
		newTestObservation(t, "obj-1", 2, 4.0),
		newTestObservation(t, "obj-1", 3, 6.0),
	})
	require.NoError(t, err)

	stats, err := observations.GetStatistics(ctx, "obj-1", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.MeasurementCount)
	assert.Equal(t, 2.0, stats.MinFlux)
	assert.Equal(t, 6.0, stats.MaxFlux)
	assert.Equal(t, 4.0, stats.MeanFlux)
	assert.Equal(t, 4.0, stats.MedianFlux)
	assert.InDelta(t, 4.0, stats.WeightedMeanFlux, 1e-12)
	assert.Equal(t, 1.0, stats.StartTime)
	assert.Equal(t, 3.0, stats.EndTime)
}
