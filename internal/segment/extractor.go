package segment

import (
	"time"

	"github.com/vacstack/outgas-engine/internal/models"
)

// Config controls interval extraction boundaries and minimum lengths.
type Config struct {
	// GapThreshold closes the current interval when the spacing between
	// consecutive samples exceeds it.
	GapThreshold time.Duration
	// DropThreshold closes the current interval when pressure falls by more
	// than this amount between consecutive samples (active pumping).
	DropThreshold float64
	// MinSamples discards candidate intervals with fewer samples.
	MinSamples int
	// MinDuration discards candidate intervals spanning less time.
	MinDuration time.Duration
}

// Extractor partitions a pressure series into rise intervals bounded by
// sampling gaps and pump-downs.
type Extractor struct{}

// NewExtractor creates a rise-interval extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract walks the series once and returns the chronological, non-overlapping
// rise intervals that satisfy the minimum length rules. A series with no valid
// interval yields an empty result, not an error.
func (e *Extractor) Extract(series models.Series, cfg Config) []models.RiseInterval {
	if len(series) < 2 {
		return nil
	}

	if cfg.GapThreshold <= 0 {
		cfg.GapThreshold = 30 * time.Second
	}
	if cfg.DropThreshold <= 0 {
		cfg.DropThreshold = 1.0
	}
	if cfg.MinSamples < 3 {
		// Below three samples the fit has no degrees of freedom.
		cfg.MinSamples = 3
	}

	intervals := make([]models.RiseInterval, 0)
	start := 0
	for i := 1; i < len(series); i++ {
		gap := series[i].Time.Sub(series[i-1].Time)
		drop := series[i-1].Pressure - series[i].Pressure
		if gap > cfg.GapThreshold || drop > cfg.DropThreshold {
			intervals = appendIfValid(intervals, series, models.RiseInterval{Start: start, End: i - 1}, cfg)
			start = i
		}
	}
	intervals = appendIfValid(intervals, series, models.RiseInterval{Start: start, End: len(series) - 1}, cfg)

	return intervals
}

func appendIfValid(intervals []models.RiseInterval, series models.Series, candidate models.RiseInterval, cfg Config) []models.RiseInterval {
	if candidate.Count() < cfg.MinSamples {
		return intervals
	}
	if cfg.MinDuration > 0 && candidate.Duration(series) < cfg.MinDuration {
		return intervals
	}
	return append(intervals, candidate)
}
