package domain

// TimeRange is a half-open interval [Start, End) in days since epoch.
// A nil *TimeRange means the full history.
type TimeRange struct {
	Start float64
	End   float64
}

// Contains reports whether ts falls inside the interval.
func (r *TimeRange) Contains(ts float64) bool {
	return ts >= r.Start && ts < r.End
}

// Lightcurve is the ordered view of the observations persisted for one
// object. It is materialized from a query, never stored.
type Lightcurve struct {
	Object       *TrackedObject
	Observations []Observation // ascending by timestamp
	Range        *TimeRange    // nil when the full history was requested
}

// Span returns the first and last timestamps of the curve. ok is false for
// an empty curve.
func (lc *Lightcurve) Span() (first, last float64, ok bool) {
	if len(lc.Observations) == 0 {
		return 0, 0, false
	}
	return lc.Observations[0].Timestamp, lc.Observations[len(lc.Observations)-1].Timestamp, true
}
