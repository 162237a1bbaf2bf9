// Package simulator generates statistically plausible synthetic flux series
// for tracked objects. It never touches storage: output is validated domain
// entities, staged in memory for the bulk loader.
package simulator

import (
	"errors"
	"fmt"
	"math/rand"

	"lightcurvedb/internal/domain"
	"lightcurvedb/internal/idhash"
	"lightcurvedb/internal/observability"
)

// ErrGeneration is returned when a generated value cannot validate, e.g.
// numeric overflow in the signal function. This is a configuration or
// programming fault: fatal, never retried.
var ErrGeneration = errors.New("generation produced an invalid observation")

// objectNamespace prefixes identifiers of fabricated objects.
const objectNamespace = "SIM"

// Series is one object's staged synthetic lightcurve.
type Series struct {
	Object       *domain.TrackedObject
	Observations []domain.Observation
}

// Simulator produces synthetic observations. Given the same seed and
// configuration, output is byte-for-byte reproducible.
type Simulator struct {
	cfg  Config
	seed int64
}

// New creates a Simulator. The configuration is validated up front.
func New(cfg Config, seed int64) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("simulator config: %w", err)
	}
	return &Simulator{cfg: cfg, seed: seed}, nil
}

// GenerateObjects fabricates n tracked objects with deterministic
// identifiers and random sky positions. Objects carry a cross-match entry
// the way real catalog sources do.
func (s *Simulator) GenerateObjects(n int) ([]*domain.TrackedObject, error) {
	rng := rand.New(rand.NewSource(s.seed))

	objects := make([]*domain.TrackedObject, 0, n)
	for i := 0; i < n; i++ {
		id := idhash.ComputeObjectID(objectNamespace, s.seed, i)
		ra := rng.Float64()*360 - 180
		dec := rng.Float64()*180 - 90
		extra := &domain.ObjectMetadata{
			CrossMatches: []domain.CrossMatch{
				{Name: fmt.Sprintf("ACT-%05d", rng.Intn(10000))},
			},
		}

		obj, err := domain.NewTrackedObject(id, fmt.Sprintf("simulated source %d", i), &ra, &dec, extra)
		if err != nil {
			return nil, fmt.Errorf("generate object %d: %v: %w", i, err, ErrGeneration)
		}
		objects = append(objects, obj)
	}

	return objects, nil
}

// SeriesFor generates the synthetic lightcurve for one object. The RNG seed
// is derived from the root seed and the object ID, so any single series can
// be regenerated without replaying the whole run.
func (s *Simulator) SeriesFor(obj *domain.TrackedObject) (*Series, error) {
	rng := rand.New(rand.NewSource(idhash.ComputeSubSeed(s.seed, obj.ID)))

	model := newFluxModel(s.cfg, rng)
	timestamps := sampleTimestamps(s.cfg, rng)

	obs := make([]domain.Observation, 0, len(timestamps))
	for i, t := range timestamps {
		flux := model.flux(t, rng)

		var uncertainty *float64
		if s.cfg.NoiseSigma > 0 {
			u := s.cfg.NoiseSigma
			uncertainty = &u
		}

		o, err := domain.NewObservation(obj.ID, t, flux, uncertainty)
		if err != nil {
			// Fail fast: a partially invalid series is never emitted.
			return nil, fmt.Errorf("object %s point %d: %v: %w", obj.ID, i, err, ErrGeneration)
		}
		obs = append(obs, *o)
	}

	return &Series{Object: obj, Observations: obs}, nil
}

// Run generates a series for every object, failing fast on the first
// generation error.
func (s *Simulator) Run(objects []*domain.TrackedObject) ([]Series, error) {
	series := make([]Series, 0, len(objects))
	for _, obj := range objects {
		sr, err := s.SeriesFor(obj)
		if err != nil {
			observability.RecordGenerationError()
			return nil, err
		}
		observability.RecordSimulation(len(sr.Observations))
		series = append(series, *sr)
	}
	return series, nil
}
