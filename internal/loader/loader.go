// Package loader moves staged simulator output into the persistence layer
// with batching, duplicate accounting and partial-failure recovery.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"lightcurvedb/internal/domain"
	"lightcurvedb/internal/observability"
	"lightcurvedb/internal/simulator"
	"lightcurvedb/internal/storage"
)

// ErrAllObjectsFailed is returned when not a single object loaded. Partial
// loads return a report instead; callers decide whether partial is
// acceptable.
var ErrAllObjectsFailed = errors.New("bulk load failed for every object")

const (
	defaultBatchSize = 500
	defaultWorkers   = 1
)

// Report aggregates the outcome of one bulk load.
type Report struct {
	ObjectsLoaded         int
	ObjectsFailed         []string // identifiers, sorted
	ObservationsRequested int
	ObservationsInserted  int
	DuplicatesSkipped     int
	Duration              time.Duration
}

// Options configures a Loader.
type Options struct {
	ObjectStore      storage.ObjectStore
	ObservationStore storage.ObservationStore

	// BatchSize bounds the observations per insert transaction, so one
	// pathological object cannot block the load for others. Default 500.
	BatchSize int

	// Workers sets how many objects load concurrently. The store's
	// transactional guarantees are the only synchronization on data; the
	// loader shares no mutable state between workers beyond the report.
	// Default 1.
	Workers int

	Logger *log.Logger
}

// Loader writes simulator output through the persistence layer.
type Loader struct {
	objects      storage.ObjectStore
	observations storage.ObservationStore
	batchSize    int
	workers      int
	logger       *log.Logger
}

// New creates a Loader.
func New(opts Options) *Loader {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[loader] ", log.LstdFlags)
	}

	return &Loader{
		objects:      opts.ObjectStore,
		observations: opts.ObservationStore,
		batchSize:    batchSize,
		workers:      workers,
		logger:       logger,
	}
}

// objectResult is one object's load outcome.
type objectResult struct {
	objectID  string
	requested int
	inserted  int
	err       error
}

// Load writes every series through the stores. A failure on one object is
// recorded and loading continues with the next; the call errors only when
// zero objects succeeded.
func (l *Loader) Load(ctx context.Context, series []simulator.Series) (*Report, error) {
	start := time.Now()

	jobs := make(chan simulator.Series)
	results := make(chan objectResult)

	var wg sync.WaitGroup
	for w := 0; w < l.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sr := range jobs {
				results <- l.loadSeries(ctx, sr)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, sr := range series {
			select {
			case jobs <- sr:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	report := &Report{}
	for res := range results {
		report.ObservationsRequested += res.requested
		report.ObservationsInserted += res.inserted

		if res.err != nil {
			l.logger.Printf("Object %s failed: %v", res.objectID, res.err)
			report.ObjectsFailed = append(report.ObjectsFailed, res.objectID)
			observability.RecordObjectLoadFailed()
			continue
		}

		report.ObjectsLoaded++
		report.DuplicatesSkipped += res.requested - res.inserted
	}
	sort.Strings(report.ObjectsFailed)
	report.Duration = time.Since(start)

	observability.RecordLoad(report.ObservationsInserted, report.DuplicatesSkipped, report.Duration.Seconds())

	if err := ctx.Err(); err != nil {
		return report, err
	}
	if len(series) > 0 && report.ObjectsLoaded == 0 {
		return report, fmt.Errorf("%d objects: %w", len(report.ObjectsFailed), ErrAllObjectsFailed)
	}

	return report, nil
}

// loadSeries loads one object: get-or-create, then batched inserts.
// Committed batches stay committed when a later batch fails.
func (l *Loader) loadSeries(ctx context.Context, sr simulator.Series) objectResult {
	res := objectResult{objectID: sr.Object.ID, requested: len(sr.Observations)}

	if _, err := l.objects.GetOrCreate(ctx, sr.Object); err != nil {
		res.err = fmt.Errorf("get or create: %w", err)
		return res
	}

	for _, batch := range chunk(sr.Observations, l.batchSize) {
		if err := ctx.Err(); err != nil {
			res.err = err
			return res
		}

		inserted, err := l.observations.InsertBatch(ctx, sr.Object.ID, batch)
		res.inserted += inserted
		if err != nil {
			res.err = fmt.Errorf("insert batch: %w", err)
			return res
		}
	}

	return res
}

// chunk splits obs into batches of at most size elements.
func chunk(obs []domain.Observation, size int) [][]domain.Observation {
	var batches [][]domain.Observation
	for len(obs) > size {
		batches = append(batches, obs[:size])
		obs = obs[size:]
	}
	if len(obs) > 0 {
		batches = append(batches, obs)
	}
	return batches
}
