package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"lightcurvedb/internal/domain"
	"lightcurvedb/internal/storage/migrations"
)

// setupTestDB creates a PostgreSQL container for testing and applies the
// schema. Returns a cleanup function that must be called after tests
// complete.
func setupTestDB(t *testing.T) (*Pool, func()) {
	t.Helper()

	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err, "failed to create pool")

	err = migrations.RunPostgresMigrations(ctx, pool)
	require.NoError(t, err, "failed to apply schema")

	cleanup := func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return pool, cleanup
}

func newTestObject(t *testing.T, id string) *domain.TrackedObject {
	t.Helper()
	obj, err := domain.NewTrackedObject(id, "source "+id, ptr(15.0), ptr(-30.0),
		&domain.ObjectMetadata{CrossMatches: []domain.CrossMatch{{Name: "ACT-00007"}}})
	require.NoError(t, err)
	return obj
}

func newTestObservation(t *testing.T, objectID string, ts, flux float64) domain.Observation {
	t.Helper()
	o, err := domain.NewObservation(objectID, ts, flux, ptr(0.1))
	require.NoError(t, err)
	return *o
}

// ptr is a helper to create pointers to values.
func ptr[T any](v T) *T {
	return &v
}
