// Package main provides the long-running service: periodic simulated loads
// against the configured backend, a websocket observation feed, and
// health/metrics/status endpoints.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"lightcurvedb/internal/feed"
	"lightcurvedb/internal/loader"
	"lightcurvedb/internal/observability"
	"lightcurvedb/internal/simulator"
	"lightcurvedb/internal/storage"
	"lightcurvedb/internal/storage/memory"
	"lightcurvedb/internal/storage/migrations"
	pgstore "lightcurvedb/internal/storage/postgres"
)

// Server holds the service components and run state.
type Server struct {
	objectStore      storage.ObjectStore
	observationStore storage.ObservationStore
	broker           *feed.Broker
	simCfg           simulator.Config
	baseSeed         int64
	loader           *loader.Loader
	interval         time.Duration
	objects          int
	logger           *log.Logger

	mu          sync.Mutex
	started     time.Time
	lastLoadRun time.Time
	loadRunning bool
	loadRuns    int
	lastReport  *loader.Report
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	httpAddr := flag.String("http-addr", ":8080", "HTTP address for health/metrics/status/feed")
	loadInterval := flag.Duration("load-interval", 1*time.Hour, "Interval between simulated loads")
	objects := flag.Int("objects", 16, "Objects per simulated load")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Simulation seed")
	batchSize := flag.Int("batch-size", 500, "Observations per insert batch")
	workers := flag.Int("workers", 4, "Concurrent object loads")
	flag.Parse()

	logger := log.New(os.Stdout, "[serve] ", log.LstdFlags|log.Lshortfile)

	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())

	objectStore, observationStore, cleanup, err := createStores(ctx, *postgresDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	simCfg := simulator.DefaultConfig()
	if err := simCfg.Validate(); err != nil {
		logger.Fatalf("Invalid simulator configuration: %v", err)
	}

	broker := feed.NewBroker()
	go broker.Start()
	defer broker.Stop()

	server := &Server{
		objectStore:      objectStore,
		observationStore: observationStore,
		broker:           broker,
		simCfg:           simCfg,
		baseSeed:         *seed,
		interval:         *loadInterval,
		objects:          *objects,
		logger:           logger,
		started:          time.Now(),
	}
	server.loader = loader.New(loader.Options{
		ObjectStore:      objectStore,
		ObservationStore: observationStore,
		BatchSize:        *batchSize,
		Workers:          *workers,
		Logger:           log.New(os.Stdout, "[loader] ", log.LstdFlags),
	})

	done := make(chan error, 1)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	go server.startHTTPServer(*httpAddr)

	err = server.Run(ctx)
	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Server error: %v", err)
	}
	logger.Println("Shutdown complete")
}

// createStores builds the backend stores from flags.
func createStores(ctx context.Context, postgresDSN string, useMemory bool) (storage.ObjectStore, storage.ObservationStore, func(), error) {
	if useMemory {
		objectStore, observationStore := memory.NewStores()
		return objectStore, observationStore, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("apply schema: %w", err)
	}
	return pgstore.NewObjectStore(pool), pgstore.NewObservationStore(pool), pool.Close, nil
}

// Run loads once immediately, then on the configured interval.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Printf("Starting load scheduler (interval: %v)...", s.interval)

	s.runLoad(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runLoad(ctx)
		}
	}
}

// runLoad generates and loads one batch of synthetic series, publishing
// every loaded series to the feed.
func (s *Server) runLoad(ctx context.Context) {
	s.mu.Lock()
	if s.loadRunning {
		s.mu.Unlock()
		s.logger.Println("Load already running, skipping...")
		return
	}
	s.loadRunning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.loadRunning = false
		s.lastLoadRun = time.Now()
		s.loadRuns++
		s.mu.Unlock()
	}()

	s.mu.Lock()
	// Each run gets its own derived seed so successive loads produce new
	// objects instead of pure duplicates.
	seed := s.baseSeed + int64(s.loadRuns)
	s.mu.Unlock()

	s.logger.Printf("Running simulated load (%d objects, seed %d)...", s.objects, seed)

	sim, err := simulator.New(s.simCfg, seed)
	if err != nil {
		s.logger.Printf("Generation error: %v", err)
		return
	}
	objs, err := sim.GenerateObjects(s.objects)
	if err != nil {
		s.logger.Printf("Generation error: %v", err)
		return
	}
	series, err := sim.Run(objs)
	if err != nil {
		s.logger.Printf("Generation error: %v", err)
		return
	}

	report, err := s.loader.Load(ctx, series)
	if err != nil {
		s.logger.Printf("Load error: %v", err)
		return
	}

	s.mu.Lock()
	s.lastReport = report
	s.mu.Unlock()

	failed := make(map[string]bool, len(report.ObjectsFailed))
	for _, id := range report.ObjectsFailed {
		failed[id] = true
	}
	for _, sr := range series {
		if failed[sr.Object.ID] {
			continue
		}
		s.broker.Publish(feed.Item{
			ObjectID:     sr.Object.ID,
			Label:        sr.Object.Label,
			Observations: sr.Observations,
		})
	}

	s.logger.Printf("Load completed: %d objects, %d observations inserted, %d duplicates skipped, in %v",
		report.ObjectsLoaded, report.ObservationsInserted, report.DuplicatesSkipped, report.Duration)
}

// startHTTPServer serves health, metrics, status and the websocket feed.
func (s *Server) startHTTPServer(addr string) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/status", s.handleStatus)
	mux.Handle("/feed", feed.NewServer(s.broker, log.New(os.Stdout, "[feed] ", log.LstdFlags)))

	s.logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		s.logger.Printf("HTTP server error: %v", err)
	}
}

// StatusResponse is the JSON response for the /status endpoint.
type StatusResponse struct {
	Status               string    `json:"status"`
	Uptime               string    `json:"uptime"`
	LastLoadRun          time.Time `json:"last_load_run,omitempty"`
	LoadRuns             int       `json:"load_runs"`
	LoadRunning          bool      `json:"load_running"`
	FeedSubscribers      int       `json:"feed_subscribers"`
	ObjectsLoaded        int       `json:"objects_loaded"`
	ObservationsInserted int       `json:"observations_inserted"`
	DuplicatesSkipped    int       `json:"duplicates_skipped"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := StatusResponse{
		Status:          "running",
		Uptime:          time.Since(s.started).String(),
		LastLoadRun:     s.lastLoadRun,
		LoadRuns:        s.loadRuns,
		LoadRunning:     s.loadRunning,
		FeedSubscribers: s.broker.SubCount(),
	}
	if s.lastReport != nil {
		resp.ObjectsLoaded = s.lastReport.ObjectsLoaded
		resp.ObservationsInserted = s.lastReport.ObservationsInserted
		resp.DuplicatesSkipped = s.lastReport.DuplicatesSkipped
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
