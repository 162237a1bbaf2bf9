package simulator

import (
	"math/rand"
	"sort"
)

// minGap separates timestamps that would otherwise collide, keeping the
// (object, timestamp) uniqueness invariant intact at generation time.
const minGap = 1e-9

// sampleTimestamps produces n strictly increasing timestamps inside
// [cfg.WindowStart, cfg.WindowEnd) according to the configured cadence.
func sampleTimestamps(cfg Config, rng *rand.Rand) []float64 {
	switch cfg.Cadence {
	case CadencePoisson:
		return poissonTimestamps(cfg, rng)
	case CadenceFixed:
		return fixedTimestamps(cfg, rng)
	default:
		return uniformTimestamps(cfg, rng)
	}
}

// uniformTimestamps sorts n uniform draws over the window.
func uniformTimestamps(cfg Config, rng *rand.Rand) []float64 {
	n := cfg.ObservationsPerObject
	span := cfg.WindowEnd - cfg.WindowStart

	ts := make([]float64, n)
	for i := range ts {
		ts[i] = cfg.WindowStart + rng.Float64()*span
	}
	sort.Float64s(ts)

	enforceIncreasing(ts, cfg.WindowEnd)
	return ts
}

// poissonTimestamps accumulates exponential inter-arrival gaps with the
// configured mean. When the walk overshoots the window, offsets are scaled
// back inside it, preserving the gap structure.
func poissonTimestamps(cfg Config, rng *rand.Rand) []float64 {
	n := cfg.ObservationsPerObject
	span := cfg.WindowEnd - cfg.WindowStart

	offsets := make([]float64, n)
	var t float64
	for i := range offsets {
		gap := rng.ExpFloat64() * cfg.MeanInterval
		if gap < minGap {
			gap = minGap
		}
		t += gap
		offsets[i] = t
	}

	scale := 1.0
	if last := offsets[n-1]; last >= span {
		scale = span / last * (1 - 1e-12)
	}

	ts := make([]float64, n)
	for i := range ts {
		ts[i] = cfg.WindowStart + offsets[i]*scale
	}

	enforceIncreasing(ts, cfg.WindowEnd)
	return ts
}

// fixedTimestamps centers each point in its own interval slot and jitters it
// by at most JitterFraction of the slot, so ordering survives any jitter
// draw.
func fixedTimestamps(cfg Config, rng *rand.Rand) []float64 {
	n := cfg.ObservationsPerObject

	ts := make([]float64, n)
	for i := range ts {
		center := cfg.WindowStart + (float64(i)+0.5)*cfg.MeanInterval
		jitter := cfg.JitterFraction * cfg.MeanInterval * (rng.Float64() - 0.5)
		ts[i] = center + jitter
	}

	enforceIncreasing(ts, cfg.WindowEnd)
	return ts
}

// enforceIncreasing nudges any colliding neighbors apart while keeping every
// timestamp below the window end.
func enforceIncreasing(ts []float64, end float64) {
	for i := 1; i < len(ts); i++ {
		if ts[i] <= ts[i-1] {
			nudged := ts[i-1] + minGap
			if nudged >= end {
				nudged = ts[i-1] + (end-ts[i-1])/2
			}
			ts[i] = nudged
		}
	}
}
