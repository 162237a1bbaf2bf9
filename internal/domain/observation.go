package domain

// QualityFlag marks the reliability of a single measurement. Observations are
// immutable once persisted except for this flag, which a correction process
// may update in place.
type QualityFlag string

const (
	QualityGood    QualityFlag = "good"
	QualitySuspect QualityFlag = "suspect"
	QualityBad     QualityFlag = "bad"
)

// Observation is one flux measurement at one timestamp for one TrackedObject.
// Corresponds to the observations table in PostgreSQL.
// (object_id, timestamp) is unique; timestamps are days since the epoch and
// need not be evenly spaced.
type Observation struct {
	ObjectID    string      // FK to objects.id
	Timestamp   float64     // days since epoch, finite and non-negative
	Flux        float64     // flux value, finite
	Uncertainty *float64    // 1-sigma error estimate, nullable, finite and non-negative
	Quality     QualityFlag // defaults to QualityGood
	CreatedAt   int64       // record creation timestamp (Unix ms), set by the store
}

// NewObservation validates and constructs an Observation. Non-finite
// timestamps, fluxes or uncertainties are rejected so NaN/Inf can never
// reach the store.
func NewObservation(objectID string, timestamp, flux float64, uncertainty *float64) (*Observation, error) {
	if objectID == "" {
		return nil, validationErr("observation", "object_id", "must not be empty")
	}
	if !isFinite(timestamp) || timestamp < 0 {
		return nil, validationErr("observation", "timestamp", "must be finite and non-negative")
	}
	if !isFinite(flux) {
		return nil, validationErr("observation", "flux", "must be finite")
	}
	if uncertainty != nil {
		if !isFinite(*uncertainty) || *uncertainty < 0 {
			return nil, validationErr("observation", "uncertainty", "must be finite and non-negative")
		}
	}

	return &Observation{
		ObjectID:    objectID,
		Timestamp:   timestamp,
		Flux:        flux,
		Uncertainty: uncertainty,
		Quality:     QualityGood,
	}, nil
}
