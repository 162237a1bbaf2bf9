// Package main runs a disposable PostgreSQL instance with the schema
// applied and a seeded synthetic catalog, for local development and demos.
// The connection string is printed to stdout; the instance lives until
// SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"lightcurvedb/internal/loader"
	"lightcurvedb/internal/simulator"
	"lightcurvedb/internal/storage/migrations"
	pgstore "lightcurvedb/internal/storage/postgres"
)

func main() {
	image := flag.String("image", "postgres:15-alpine", "PostgreSQL container image")
	objects := flag.Int("objects", 128, "Number of simulated objects to seed (0 to skip seeding)")
	seed := flag.Int64("seed", 42, "Simulation seed")
	batchSize := flag.Int("batch-size", 500, "Observations per insert batch")
	flag.Parse()

	logger := log.New(os.Stderr, "[ephemeral] ", log.LstdFlags)

	if err := run(logger, *image, *objects, *seed, *batchSize); err != nil {
		logger.Fatalf("Error: %v", err)
	}
}

func run(logger *log.Logger, image string, objects int, seed int64, batchSize int) error {
	ctx := context.Background()

	logger.Printf("Starting %s...", image)
	container, err := postgres.Run(ctx, image,
		postgres.WithDatabase("lightcurvedb"),
		postgres.WithUsername("lightcurve"),
		postgres.WithPassword("lightcurve"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return fmt.Errorf("start container: %w", err)
	}
	defer func() {
		if err := container.Terminate(context.Background()); err != nil {
			logger.Printf("Failed to terminate container: %v", err)
		}
	}()

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return fmt.Errorf("connection string: %w", err)
	}

	pool, err := pgstore.NewPool(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	logger.Println("Schema applied")

	if objects > 0 {
		if err := seedCatalog(ctx, logger, pool, objects, seed, batchSize); err != nil {
			return fmt.Errorf("seed catalog: %w", err)
		}
	}

	// Connection details go to stdout so scripts can capture them.
	fmt.Println(dsn)
	logger.Println("Ready. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Printf("Received signal %v, shutting down...", sig)

	return nil
}

// seedCatalog generates and loads a synthetic catalog: daily cadence over
// one year per object.
func seedCatalog(ctx context.Context, logger *log.Logger, pool *pgstore.Pool, objects int, seed int64, batchSize int) error {
	sim, err := simulator.New(simulator.DefaultConfig(), seed)
	if err != nil {
		return err
	}

	objs, err := sim.GenerateObjects(objects)
	if err != nil {
		return err
	}
	series, err := sim.Run(objs)
	if err != nil {
		return err
	}

	l := loader.New(loader.Options{
		ObjectStore:      pgstore.NewObjectStore(pool),
		ObservationStore: pgstore.NewObservationStore(pool),
		BatchSize:        batchSize,
		Logger:           logger,
	})

	report, err := l.Load(ctx, series)
	if err != nil {
		return err
	}

	logger.Printf("Seeded %d objects, %d observations in %v",
		report.ObjectsLoaded, report.ObservationsInserted, report.Duration)
	return nil
}
