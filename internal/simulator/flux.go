package simulator

import (
	"math"
	"math/rand"
)

// fluxModel evaluates the deterministic signal component for one object.
// The flare placement is drawn once per object before any points are
// generated, so the signal at a timestamp depends only on the object's RNG
// stream.
type fluxModel struct {
	cfg Config

	flareActive bool
	flareTime   float64
}

// newFluxModel draws the per-object signal parameters.
func newFluxModel(cfg Config, rng *rand.Rand) fluxModel {
	m := fluxModel{cfg: cfg}

	if cfg.Variability == VariabilityFlare {
		// Consume both draws unconditionally to keep the stream layout
		// stable across flaring and quiet objects.
		roll := rng.Float64()
		at := cfg.WindowStart + rng.Float64()*(cfg.WindowEnd-cfg.WindowStart)
		if roll < cfg.FlareProbability {
			m.flareActive = true
			m.flareTime = at
		}
	}

	return m
}

// signal returns the noiseless flux contribution at t.
func (m fluxModel) signal(t float64) float64 {
	switch m.cfg.Variability {
	case VariabilitySinusoidal:
		return m.cfg.Amplitude * math.Sin(2*math.Pi*t/m.cfg.Period)
	case VariabilityFlare:
		if !m.flareActive {
			return 0
		}
		d := (t - m.flareTime) / m.cfg.FlareDuration
		return m.cfg.Amplitude * math.Exp(-d*d)
	default:
		return 0
	}
}

// flux returns the observed flux at t: baseline + signal + Gaussian noise.
func (m fluxModel) flux(t float64, rng *rand.Rand) float64 {
	return m.cfg.Baseline + m.signal(t) + m.cfg.NoiseSigma*rng.NormFloat64()
}
