package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lightcurvedb/internal/domain"
	"lightcurvedb/internal/storage"
)

func TestObjectStore_GetOrCreate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewObjectStore(pool)
	ctx := context.Background()

	created, err := store.GetOrCreate(ctx, newTestObject(t, "obj-1"))
	require.NoError(t, err)
	assert.Equal(t, "obj-1", created.ID)
	assert.NotZero(t, created.CreatedAt)
	require.NotNil(t, created.RA)
	assert.Equal(t, 15.0, *created.RA)
	require.NotNil(t, created.Extra)
	require.Len(t, created.Extra.CrossMatches, 1)
	assert.Equal(t, "ACT-00007", created.Extra.CrossMatches[0].Name)

	// Re-create with different attributes: the stored row is authoritative.
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

func TestObjectStore_GetOrCreate_Concurrent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewObjectStore(pool)
	ctx := context.Background()

	const callers = 8
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		go func() {
			_, err := store.GetOrCreate(ctx, newTestObject(t, "obj-race"))
			results <- err
		}()
	}
	for i := 0; i < callers; i++ {
		require.NoError(t, <-results)
	}

	all, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1, "concurrent get-or-create must produce exactly one row")
}

func TestObjectStore_Get(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewObjectStore(pool)
	ctx := context.Background()

	_, err := store.Get(ctx, "nonexistent")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = store.GetOrCreate(ctx, newTestObject(t, "obj-1"))
	require.NoError(t, err)

	got, err := store.Get(ctx, "obj-1")
	require.NoError(t, err)
	assert.Equal(t, "source obj-1", got.Label)
}

func TestObjectStore_List_SortedByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewObjectStore(pool)
	ctx := context.Background()

	for _, id := range []string{"obj-c", "obj-a", "obj-b"} {
		_, err := store.GetOrCreate(ctx, newTestObject(t, id))
		require.NoError(t, err)
	}

	all, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "obj-a", all[0].ID)
	assert.Equal(t, "obj-b", all[1].ID)
	assert.Equal(t, "obj-c", all[2].ID)
}

func TestObjectStore_Delete(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	objects := NewObjectStore(pool)
	observations := NewObservationStore(pool)
	ctx := context.Background()

	_, err := objects.GetOrCreate(ctx, newTestObject(t, "obj-1"))
	require.NoError(t, err)
	_, err = observations.InsertBatch(ctx, "obj-1", []domain.Observation{
		newTestObservation(t, "obj-1", 1, 1.0),
		newTestObservation(t, "obj-1", 2, 1.1),
	})
	require.NoError(t, err)

	// Restrict: the FK violation maps to ErrIntegrity and nothing changes.
	err = objects.Delete(ctx, "obj-1", domain.DeleteRestrict)
	assert.ErrorIs(t, err, storage.ErrIntegrity)

	obs, err := observations.GetLightcurve(ctx, "obj-1", nil)
	require.NoError(t, err)
	assert.Len(t, obs, 2, "observations must survive a refused delete")

	// Cascade removes object and observations atomically.
	err = objects.Delete(ctx, "obj-1", domain.DeleteCascade)
	require.NoError(t, err)

	_, err = objects.Get(ctx, "obj-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = observations.GetLightcurve(ctx, "obj-1", nil)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = objects.Delete(ctx, "obj-1", domain.DeleteCascade)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
