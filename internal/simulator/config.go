package simulator

import (
	"errors"
	"fmt"
	"math"
)

// Cadence selects the temporal sampling model for generated timestamps.
type Cadence string

const (
	// CadenceUniform draws timestamps uniformly over the window. This is
	// the arrival-time distribution of a Poisson process conditioned on the
	// observation count, so it doubles as the survey-like default.
	CadenceUniform Cadence = "uniform"
	// CadencePoisson draws exponential inter-arrival gaps with the
	// configured mean interval.
	CadencePoisson Cadence = "poisson"
	// CadenceFixed spaces timestamps evenly at the mean interval, with
	// optional per-point jitter.
	CadenceFixed Cadence = "fixed"
)

// Variability selects the signal component added on top of the baseline.
type Variability string

const (
	VariabilityNone       Variability = "none"
	VariabilitySinusoidal Variability = "sinusoidal"
	// VariabilityFlare deposits a Gaussian flare at a random time in the
	// window, with the configured probability per object.
	VariabilityFlare Variability = "flare"
)

// Config controls synthetic lightcurve generation. All times are in days
// since epoch.
type Config struct {
	// Cadence model
	Cadence               Cadence
	MeanInterval          float64 // mean gap in days (poisson, fixed)
	JitterFraction        float64 // [0, 1), fraction of the interval (fixed)
	WindowStart           float64
	WindowEnd             float64 // exclusive
	ObservationsPerObject int

	// Flux model
	Baseline   float64
	NoiseSigma float64 // Gaussian noise sigma, also the reported uncertainty

	Variability      Variability
	Amplitude        float64
	Period           float64 // days (sinusoidal)
	FlareDuration    float64 // days (flare)
	FlareProbability float64 // [0, 1] chance per object (flare)
}

// DefaultConfig returns the configuration used by the ephemeral seeding
// path: a quiet source observed daily for a year.
func DefaultConfig() Config {
	return Config{
		Cadence:               CadenceFixed,
		MeanInterval:          1.0,
		JitterFraction:        0.1,
		WindowStart:           0,
		WindowEnd:             365,
		ObservationsPerObject: 365,
		Baseline:              1.0,
		NoiseSigma:            0.1,
		Variability:           VariabilityNone,
	}
}

// Validate checks the configuration before any generation happens, so a bad
// option surfaces immediately instead of as a GenerationError mid-run.
func (c Config) Validate() error {
	switch c.Cadence {
	case CadenceUniform, CadencePoisson, CadenceFixed:
	default:
		return fmt.Errorf("cadence: unknown model %q", c.Cadence)
	}

	if !finite(c.WindowStart) || c.WindowStart < 0 {
		return errors.New("window start: must be finite and non-negative")
	}
	if !finite(c.WindowEnd) || c.WindowEnd <= c.WindowStart {
		return errors.New("window end: must be finite and after window start")
	}
	if c.ObservationsPerObject <= 0 {
		return errors.New("observations per object: must be positive")
	}

	if c.Cadence != CadenceUniform {
		if !finite(c.MeanInterval) || c.MeanInterval <= 0 {
			return errors.New("mean interval: must be finite and positive")
		}
	}
	if c.Cadence == CadenceFixed {
		if c.JitterFraction < 0 || c.JitterFraction >= 1 {
			return errors.New("jitter fraction: must be within [0, 1)")
		}
		span := c.MeanInterval * float64(c.ObservationsPerObject)
		if c.WindowStart+span > c.WindowEnd {
			return errors.New("fixed cadence: observations do not fit the window at the mean interval")
		}
	}

	if !finite(c.Baseline) {
		return errors.New("baseline: must be finite")
	}
	if !finite(c.NoiseSigma) || c.NoiseSigma < 0 {
		return errors.New("noise sigma: must be finite and non-negative")
	}

	switch c.Variability {
	case VariabilityNone:
	case VariabilitySinusoidal:
		if !finite(c.Amplitude) {
			return errors.New("amplitude: must be finite")
		}
		if !finite(c.Period) || c.Period <= 0 {
			return errors.New("period: must be finite and positive")
		}
	case VariabilityFlare:
		if !finite(c.Amplitude) {
			return errors.New("amplitude: must be finite")
		}
		if !finite(c.FlareDuration) || c.FlareDuration <= 0 {
			return errors.New("flare duration: must be finite and positive")
		}
		if c.FlareProbability < 0 || c.FlareProbability > 1 {
			return errors.New("flare probability: must be within [0, 1]")
		}
	default:
		return fmt.Errorf("variability: unknown model %q", c.Variability)
	}

	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
