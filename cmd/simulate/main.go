// Package main runs one seeded simulation and bulk-loads the result into
// the chosen backend, printing the load report.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"lightcurvedb/internal/loader"
	"lightcurvedb/internal/observability"
	"lightcurvedb/internal/simulator"
	"lightcurvedb/internal/storage"
	chstore "lightcurvedb/internal/storage/clickhouse"
	"lightcurvedb/internal/storage/memory"
	"lightcurvedb/internal/storage/migrations"
	pgstore "lightcurvedb/internal/storage/postgres"
	sqlitestore "lightcurvedb/internal/storage/sqlite"
)

func main() {
	// Backend selection
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	sqlitePath := flag.String("sqlite-path", "", "SQLite database file (alternative to PostgreSQL)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage (dry run)")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "Optional ClickHouse DSN for the analytics archive mirror")

	// Simulation parameters
	seed := flag.Int64("seed", 42, "Simulation seed; same seed and config reproduce the same data")
	objects := flag.Int("objects", 16, "Number of objects to simulate")
	cadence := flag.String("cadence", string(simulator.CadenceFixed), "Cadence model: uniform, poisson, fixed")
	meanInterval := flag.Float64("mean-interval", 1.0, "Mean gap between observations in days (poisson, fixed)")
	jitter := flag.Float64("jitter", 0.1, "Per-point jitter as a fraction of the interval (fixed)")
	windowStart := flag.Float64("window-start", 0, "Observation window start in days since epoch")
	windowEnd := flag.Float64("window-end", 365, "Observation window end in days since epoch (exclusive)")
	perObject := flag.Int("observations", 365, "Observations per object")
	baseline := flag.Float64("baseline", 1.0, "Baseline flux")
	noiseSigma := flag.Float64("noise-sigma", 0.1, "Gaussian noise sigma (also the reported uncertainty)")
	variability := flag.String("variability", string(simulator.VariabilityNone), "Signal model: none, sinusoidal, flare")
	amplitude := flag.Float64("amplitude", 0.5, "Signal amplitude (sinusoidal, flare)")
	period := flag.Float64("period", 10, "Signal period in days (sinusoidal)")
	flareDuration := flag.Float64("flare-duration", 2, "Flare e-folding duration in days (flare)")
	flareProbability := flag.Float64("flare-probability", 0.3, "Per-object flare probability (flare)")

	// Load parameters
	batchSize := flag.Int("batch-size", 500, "Observations per insert batch")
	workers := flag.Int("workers", 4, "Concurrent object loads")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (empty to disable)")

	flag.Parse()

	logger := log.New(os.Stdout, "[simulate] ", log.LstdFlags)

	cfg := simulator.Config{
		Cadence:               simulator.Cadence(*cadence),
		MeanInterval:          *meanInterval,
		JitterFraction:        *jitter,
		WindowStart:           *windowStart,
		WindowEnd:             *windowEnd,
		ObservationsPerObject: *perObject,
		Baseline:              *baseline,
		NoiseSigma:            *noiseSigma,
		Variability:           simulator.Variability(*variability),
		Amplitude:             *amplitude,
		Period:                *period,
		FlareDuration:         *flareDuration,
		FlareProbability:      *flareProbability,
	}

	sim, err := simulator.New(cfg, *seed)
	if err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			logger.Printf("Metrics on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	objectStore, observationStore, cleanup, err := createStores(ctx, *postgresDSN, *sqlitePath, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	logger.Printf("Generating %d objects (seed %d, cadence %s, variability %s)...",
		*objects, *seed, cfg.Cadence, cfg.Variability)

	objs, err := sim.GenerateObjects(*objects)
	if err != nil {
		logger.Fatalf("Generation failed: %v", err)
	}
	series, err := sim.Run(objs)
	if err != nil {
		logger.Fatalf("Generation failed: %v", err)
	}

	l := loader.New(loader.Options{
		ObjectStore:      objectStore,
		ObservationStore: observationStore,
		BatchSize:        *batchSize,
		Workers:          *workers,
		Logger:           logger,
	})

	report, err := l.Load(ctx, series)
	if err != nil {
		logger.Fatalf("Load failed: %v", err)
	}

	logger.Printf("Loaded %d/%d objects: %d observations inserted, %d duplicates skipped, in %v",
		report.ObjectsLoaded, len(series), report.ObservationsInserted, report.DuplicatesSkipped, report.Duration)
	for _, id := range report.ObjectsFailed {
		logger.Printf("Failed: %s", id)
	}

	if *clickhouseDSN != "" {
		if err := mirrorToArchive(ctx, logger, *clickhouseDSN, series); err != nil {
			logger.Fatalf("Archive mirror failed: %v", err)
		}
	}
}

// createStores selects the backend from flags. Exactly one of postgres,
// sqlite and memory is used; postgres wins when several are given.
func createStores(ctx context.Context, postgresDSN, sqlitePath string, useMemory bool) (storage.ObjectStore, storage.ObservationStore, func(), error) {
	switch {
	case postgresDSN != "":
		pool, err := pgstore.NewPool(ctx, postgresDSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("apply schema: %w", err)
		}
		return pgstore.NewObjectStore(pool), pgstore.NewObservationStore(pool), pool.Close, nil

	case sqlitePath != "":
		db, err := sqlitestore.Open(ctx, sqlitePath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		return sqlitestore.NewObjectStore(db), sqlitestore.NewObservationStore(db), func() { db.Close() }, nil

	case useMemory:
		objectStore, observationStore := memory.NewStores()
		return objectStore, observationStore, func() {}, nil

	default:
		return nil, nil, nil, fmt.Errorf("no backend selected: use --postgres-dsn, --sqlite-path or --use-memory")
	}
}

// mirrorToArchive appends the loaded series to the ClickHouse analytics
// archive.
func mirrorToArchive(ctx context.Context, logger *log.Logger, dsn string, series []simulator.Series) error {
	conn, err := chstore.NewConn(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect to clickhouse: %w", err)
	}
	defer conn.Close()

	if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
		return fmt.Errorf("apply archive schema: %w", err)
	}

	archive := chstore.NewArchive(conn)
	total := 0
	for _, sr := range series {
		inserted, err := archive.InsertBatch(ctx, sr.Object.ID, sr.Observations)
		if err != nil {
			return fmt.Errorf("archive object %s: %w", sr.Object.ID, err)
		}
		total += inserted
	}

	logger.Printf("Archived %d observations to ClickHouse", total)
	return nil
}
