package segment

import (
	"testing"
	"time"

	"github.com/vacstack/outgas-engine/internal/models"
)

func risingSeries(start time.Time, n int, step time.Duration, slopePerStep float64) models.Series {
	series := make(models.Series, 0, n)
	for i := 0; i < n; i++ {
		series = append(series, models.Sample{
			Time:     start.Add(time.Duration(i) * step),
			Pressure: 1.0 + slopePerStep*float64(i),
		})
	}
	return series
}

func TestExtractSingleSample(t *testing.T) {
	extractor := NewExtractor()
	series := models.Series{{Time: time.Unix(1_700_000_000, 0), Pressure: 1.0}}

	intervals := extractor.Extract(series, Config{})
	if len(intervals) != 0 {
		t.Fatalf("expected no intervals for a single sample, got %d", len(intervals))
	}
}

func TestExtractUnbrokenRise(t *testing.T) {
	extractor := NewExtractor()
	start := time.Unix(1_700_000_000, 0)
	series := risingSeries(start, 30, time.Second, 0.1)

	intervals := extractor.Extract(series, Config{GapThreshold: 10 * time.Second, DropThreshold: 1.0, MinSamples: 5})
	if len(intervals) != 1 {
		t.Fatalf("expected one interval, got %d", len(intervals))
	}
	if intervals[0].Start != 0 || intervals[0].End != 29 {
		t.Fatalf("interval does not cover the series: %+v", intervals[0])
	}
}

func TestExtractSplitsOnGap(t *testing.T) {
	extractor := NewExtractor()
	start := time.Unix(1_700_000_000, 0)
	series := risingSeries(start, 10, time.Second, 0.1)
	afterGap := start.Add(5 * time.Minute)
	series = append(series, risingSeries(afterGap, 10, time.Second, 0.1)...)

	intervals := extractor.Extract(series, Config{GapThreshold: 10 * time.Second, DropThreshold: 100, MinSamples: 3})
	if len(intervals) != 2 {
		t.Fatalf("expected 2 intervals split by the gap, got %d", len(intervals))
	}
	if intervals[0].End >= 10 {
		t.Fatalf("first interval spans the gap: %+v", intervals[0])
	}
	if intervals[1].Start < 10 {
		t.Fatalf("second interval spans the gap: %+v", intervals[1])
	}
}

func TestExtractSplitsOnPumpDown(t *testing.T) {
	extractor := NewExtractor()
	start := time.Unix(1_700_000_000, 0)
	series := risingSeries(start, 10, time.Second, 0.5)
	// Pressure collapses back to baseline: active pumping.
	second := risingSeries(start.Add(10*time.Second), 10, time.Second, 0.5)
	series = append(series, second...)

	intervals := extractor.Extract(series, Config{GapThreshold: time.Minute, DropThreshold: 1.0, MinSamples: 3})
	if len(intervals) != 2 {
		t.Fatalf("expected 2 intervals split by the pump-down, got %d", len(intervals))
	}
}

func TestExtractToleratesBoundedSpike(t *testing.T) {
	extractor := NewExtractor()
	start := time.Unix(1_700_000_000, 0)
	series := risingSeries(start, 20, time.Second, 0.1)
	// A single spike whose decay stays below the drop threshold must not
	// split the interval.
	series[10].Pressure += 0.5

	intervals := extractor.Extract(series, Config{GapThreshold: 10 * time.Second, DropThreshold: 1.0, MinSamples: 3})
	if len(intervals) != 1 {
		t.Fatalf("expected spike to be tolerated, got %d intervals", len(intervals))
	}
}

func TestExtractDiscardsShortIntervals(t *testing.T) {
	extractor := NewExtractor()
	start := time.Unix(1_700_000_000, 0)
	series := risingSeries(start, 4, time.Second, 0.1)
	series = append(series, risingSeries(start.Add(5*time.Minute), 20, time.Second, 0.1)...)

	intervals := extractor.Extract(series, Config{GapThreshold: 10 * time.Second, DropThreshold: 1.0, MinSamples: 10})
	if len(intervals) != 1 {
		t.Fatalf("expected short fragment discarded, got %d intervals", len(intervals))
	}
	if intervals[0].Count() != 20 {
		t.Fatalf("surviving interval has %d samples, want 20", intervals[0].Count())
	}
}

func TestExtractMinDuration(t *testing.T) {
	extractor := NewExtractor()
	start := time.Unix(1_700_000_000, 0)
	series := risingSeries(start, 5, time.Second, 0.1)

	intervals := extractor.Extract(series, Config{GapThreshold: 10 * time.Second, DropThreshold: 1.0, MinSamples: 3, MinDuration: time.Minute})
	if len(intervals) != 0 {
		t.Fatalf("expected interval below minimum duration discarded, got %d", len(intervals))
	}
}
