package domain

// FluxStatistics summarizes the flux measurements of one object, optionally
// restricted to a time range. Computed store-side where the backend supports
// aggregation.
type FluxStatistics struct {
	ObjectID string

	MeasurementCount int
	StartTime        float64 // earliest timestamp in the summary
	EndTime          float64 // latest timestamp in the summary

	MinFlux    float64
	MaxFlux    float64
	MeanFlux   float64
	StddevFlux float64
	MedianFlux float64

	// Inverse-variance weighted mean over points that carry an uncertainty.
	// Zero when no point has one.
	WeightedMeanFlux float64
}
