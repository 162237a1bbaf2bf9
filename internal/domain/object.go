package domain

import "math"

// CrossMatch links a tracked object to a counterpart in another catalog.
type CrossMatch struct {
	Name string `json:"name"`
}

// ObjectMetadata holds optional static descriptors stored as a JSONB column.
type ObjectMetadata struct {
	CrossMatches []CrossMatch `json:"cross_matches,omitempty"`
}

// TrackedObject represents a physical entity whose flux is monitored.
// Corresponds to the objects table in PostgreSQL.
type TrackedObject struct {
	ID        string          // PRIMARY KEY, stable and immutable
	Label     string          // human-readable label
	RA        *float64        // right ascension in degrees, nullable
	Dec       *float64        // declination in degrees, nullable
	Extra     *ObjectMetadata // optional catalog metadata (JSONB)
	CreatedAt int64           // record creation timestamp (Unix ms), set by the store
}

// DeletionPolicy controls what happens to observations when their object
// is deleted. This is deployment configuration, not a hardcoded behavior.
type DeletionPolicy string

const (
	// DeleteCascade removes the object together with all of its observations.
	DeleteCascade DeletionPolicy = "cascade"
	// DeleteRestrict refuses deletion while any observation references the object.
	DeleteRestrict DeletionPolicy = "restrict"
)

// NewTrackedObject validates and constructs a TrackedObject.
// It is the single definition of a valid object row, shared by live
// ingestion and the simulator.
func NewTrackedObject(id, label string, ra, dec *float64, extra *ObjectMetadata) (*TrackedObject, error) {
	if id == "" {
		return nil, validationErr("object", "id", "must not be empty")
	}
	if label == "" {
		return nil, validationErr("object", "label", "must not be empty")
	}
	if ra != nil {
		if !isFinite(*ra) || *ra < -180 || *ra > 180 {
			return nil, validationErr("object", "ra", "must be finite and within [-180, 180]")
		}
	}
	if dec != nil {
		if !isFinite(*dec) || *dec < -90 || *dec > 90 {
			return nil, validationErr("object", "dec", "must be finite and within [-90, 90]")
		}
	}

	return &TrackedObject{
		ID:    id,
		Label: label,
		RA:    ra,
		Dec:   dec,
		Extra: extra,
	}, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
