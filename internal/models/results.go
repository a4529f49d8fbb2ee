package models

import "time"

// RiseInterval is a contiguous sub-range of a Series (inclusive indices)
// believed to cover one uninterrupted outgassing event.
type RiseInterval struct {
	Start int
	End   int
}

// Count returns the number of samples covered by the interval.
func (r RiseInterval) Count() int {
	return r.End - r.Start + 1
}

// Samples returns the slice of the parent series covered by the interval.
func (r RiseInterval) Samples(series Series) Series {
	return series[r.Start : r.End+1]
}

// Window returns the time range covered by the interval within series.
func (r RiseInterval) Window(series Series) TimeRange {
	return TimeRange{Start: series[r.Start].Time, End: series[r.End].Time}
}

// Duration returns the time spanned by the interval within series.
func (r RiseInterval) Duration(series Series) time.Duration {
	return series[r.End].Time.Sub(series[r.Start].Time)
}

// RejectReason classifies why an interval produced no result.
type RejectReason string

const (
	// ReasonInsufficientFit marks intervals whose inlier fraction fell below
	// the configured minimum.
	ReasonInsufficientFit RejectReason = "insufficient_fit"
	// ReasonDegenerateInterval marks intervals with fewer samples than the
	// fit degrees of freedom.
	ReasonDegenerateInterval RejectReason = "degenerate_interval"
)

// RateEstimate is the fitted pressure-rise trend for one interval. Slope is
// in pressure units per second. When Valid is false the numeric fields are
// meaningless and Reason explains the rejection.
type RateEstimate struct {
	Interval       RiseInterval
	Slope          float64
	SlopeStderr    float64
	Intercept      float64
	InlierFraction float64
	Valid          bool
	Reason         RejectReason
}

// OutgasResult is the converted outgassing rate for one rise interval, in
// pressure·volume per second per area.
type OutgasResult struct {
	Window          TimeRange
	Rate            float64
	RateUncertainty float64
	SampleCount     int
}

// Rejection records an interval omitted from the result sequence.
type Rejection struct {
	Window TimeRange
	Reason RejectReason
}

// Diagnostics summarises a pipeline run for reporting alongside the results.
type Diagnostics struct {
	SamplesLoaded      int
	IntervalsExtracted int
	IntervalsConverted int
	Rejections         []Rejection
	NegativeRates      int
}
