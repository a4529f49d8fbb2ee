package fit

import (
	"math"
	"testing"
	"time"

	"github.com/vacstack/outgas-engine/internal/models"
)

func linearSeries(n int, slope, intercept float64) models.Series {
	base := time.Unix(1_700_000_000, 0)
	series := make(models.Series, 0, n)
	for i := 0; i < n; i++ {
		series = append(series, models.Sample{
			Time:     base.Add(time.Duration(i) * time.Second),
			Pressure: slope*float64(i) + intercept,
		})
	}
	return series
}

func fullInterval(series models.Series) models.RiseInterval {
	return models.RiseInterval{Start: 0, End: len(series) - 1}
}

func TestFitPerfectLine(t *testing.T) {
	series := linearSeries(100, 2.0, 10.0)

	est := Fit(series, fullInterval(series), Config{Tolerance: 3, MinInlierFraction: 0.5})
	if !est.Valid {
		t.Fatalf("expected valid estimate, got reason %q", est.Reason)
	}
	if math.Abs(est.Slope-2.0) > 1e-9 {
		t.Fatalf("slope = %g, want 2.0", est.Slope)
	}
	if math.Abs(est.Intercept-10.0) > 1e-6 {
		t.Fatalf("intercept = %g, want 10.0", est.Intercept)
	}
	if est.SlopeStderr > 1e-9 {
		t.Fatalf("stderr = %g, want ~0 for noiseless data", est.SlopeStderr)
	}
	if est.InlierFraction != 1.0 {
		t.Fatalf("inlier fraction = %g, want 1.0", est.InlierFraction)
	}
}

func TestFitRejectsExtremeOutliers(t *testing.T) {
	series := linearSeries(100, 2.0, 10.0)
	// 5% of points replaced by extreme excursions in both directions.
	for _, i := range []int{10, 50, 90} {
		series[i].Pressure += 5000
	}
	for _, i := range []int{30, 70} {
		series[i].Pressure -= 5000
	}

	est := Fit(series, fullInterval(series), Config{Tolerance: 3, MinInlierFraction: 0.5, MaxIterations: 10})
	if !est.Valid {
		t.Fatalf("expected valid estimate, got reason %q", est.Reason)
	}
	if math.Abs(est.Slope-2.0) > 1e-6 {
		t.Fatalf("slope = %g, want 2.0 after outlier rejection", est.Slope)
	}
	if est.InlierFraction < 0.94 || est.InlierFraction > 0.96 {
		t.Fatalf("inlier fraction = %g, want ~0.95", est.InlierFraction)
	}
}

func TestFitWeightedMatchesTrend(t *testing.T) {
	series := linearSeries(50, 0.5, 2.0)
	for i := range series {
		series[i].Sigma = 0.1 * series[i].Pressure
	}

	est := Fit(series, fullInterval(series), Config{Tolerance: 3, MinInlierFraction: 0.5})
	if !est.Valid {
		t.Fatalf("expected valid estimate, got reason %q", est.Reason)
	}
	if math.Abs(est.Slope-0.5) > 1e-9 {
		t.Fatalf("weighted slope = %g, want 0.5", est.Slope)
	}
}

func TestFitDegenerateInterval(t *testing.T) {
	series := linearSeries(2, 1.0, 0.0)

	est := Fit(series, fullInterval(series), Config{})
	if est.Valid {
		t.Fatalf("expected invalid estimate for 2-sample interval")
	}
	if est.Reason != models.ReasonDegenerateInterval {
		t.Fatalf("reason = %q, want %q", est.Reason, models.ReasonDegenerateInterval)
	}
	if est.SlopeStderr != 0 || est.Slope != 0 {
		t.Fatalf("invalid estimate must not carry fit numbers: %+v", est)
	}
}

func TestFitInsufficientInlierFraction(t *testing.T) {
	series := linearSeries(20, 2.0, 10.0)
	series[10].Pressure += 1e6

	est := Fit(series, fullInterval(series), Config{Tolerance: 3, MinInlierFraction: 1.0, MaxIterations: 10})
	if est.Valid {
		t.Fatalf("expected invalid estimate when an outlier breaks the minimum inlier fraction")
	}
	if est.Reason != models.ReasonInsufficientFit {
		t.Fatalf("reason = %q, want %q", est.Reason, models.ReasonInsufficientFit)
	}
}

func TestFitDeterministic(t *testing.T) {
	series := linearSeries(60, 1.5, 3.0)
	series[20].Pressure += 200
	cfg := Config{Tolerance: 3, MinInlierFraction: 0.5, MaxIterations: 10}

	first := Fit(series, fullInterval(series), cfg)
	second := Fit(series, fullInterval(series), cfg)
	if first != second {
		t.Fatalf("fit is not deterministic: %+v vs %+v", first, second)
	}
}
