package fit

import (
	"math"

	"github.com/montanaflynn/stats"

	"github.com/vacstack/outgas-engine/internal/models"
)

// madToSigma rescales a median absolute deviation to a standard-deviation
// equivalent under Gaussian noise.
const madToSigma = 1.4826

// Config controls outlier rejection during the robust fit.
type Config struct {
	// Tolerance is the residual cutoff in units of the estimated residual
	// scale.
	Tolerance float64
	// MinInlierFraction invalidates estimates whose surviving inlier share
	// falls below it.
	MinInlierFraction float64
	// MaxIterations caps the reject-and-refit loop.
	MaxIterations int
}

// Fit performs an iterative robust linear regression of pressure against time
// over the interval's samples. Samples carrying a positive sigma are weighted
// by 1/sigma^2; otherwise the fit is unweighted. The returned estimate is
// marked invalid, never populated with degenerate numbers, when the interval
// is too short or too few samples survive rejection.
func Fit(series models.Series, interval models.RiseInterval, cfg Config) models.RateEstimate {
	est := models.RateEstimate{Interval: interval}

	samples := interval.Samples(series)
	n := len(samples)
	if n < 3 {
		est.Reason = models.ReasonDegenerateInterval
		return est
	}

	if cfg.Tolerance <= 0 {
		cfg.Tolerance = 3
	}
	if cfg.MinInlierFraction <= 0 || cfg.MinInlierFraction > 1 {
		cfg.MinInlierFraction = 0.5
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 10
	}

	// Times are taken relative to the interval start; unix epoch offsets are
	// large enough to destroy precision in the normal equations.
	t0 := samples[0].Time
	xs := make([]float64, n)
	ys := make([]float64, n)
	ws := make([]float64, n)
	weighted := true
	for i, s := range samples {
		xs[i] = s.Time.Sub(t0).Seconds()
		ys[i] = s.Pressure
		if s.Sigma > 0 {
			ws[i] = 1 / (s.Sigma * s.Sigma)
		} else {
			weighted = false
		}
	}
	if !weighted {
		for i := range ws {
			ws[i] = 1
		}
	}

	inlier := make([]bool, n)
	for i := range inlier {
		inlier[i] = true
	}

	floor := residualFloor(ys)
	for iter := 0; iter < cfg.MaxIterations; iter++ {
		line, ok := solve(xs, ys, ws, inlier)
		if !ok {
			est.Reason = models.ReasonInsufficientFit
			return est
		}

		resid := make([]float64, 0, n)
		for i := range xs {
			if inlier[i] {
				resid = append(resid, ys[i]-line.at(xs[i]))
			}
		}
		// Residuals are centered on their median before thresholding: gross
		// outliers bias the contaminated fit by a near-constant offset, which
		// must not count against the inliers.
		center, err := stats.Median(resid)
		if err != nil {
			est.Reason = models.ReasonInsufficientFit
			return est
		}
		mad, err := stats.MedianAbsoluteDeviation(resid)
		if err != nil {
			est.Reason = models.ReasonInsufficientFit
			return est
		}
		scale := madToSigma * mad
		if scale <= floor {
			// The trend explains the current inliers to numerical precision.
			break
		}

		changed := false
		for i := range xs {
			keep := math.Abs(ys[i]-line.at(xs[i])-center) <= cfg.Tolerance*scale
			if keep != inlier[i] {
				inlier[i] = keep
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	line, ok := solve(xs, ys, ws, inlier)
	if !ok {
		est.Reason = models.ReasonInsufficientFit
		return est
	}

	count := 0
	for _, in := range inlier {
		if in {
			count++
		}
	}
	fraction := float64(count) / float64(n)
	if fraction < cfg.MinInlierFraction {
		est.Reason = models.ReasonInsufficientFit
		est.InlierFraction = fraction
		return est
	}

	est.Slope = line.slope
	est.SlopeStderr = line.slopeStderr
	est.Intercept = line.intercept
	est.InlierFraction = fraction
	est.Valid = true
	return est
}

type lineFit struct {
	slope       float64
	intercept   float64
	slopeStderr float64
}

func (l lineFit) at(x float64) float64 {
	return l.slope*x + l.intercept
}

// solve computes the weighted least-squares line over the masked points and
// the slope standard error from the scaled fit covariance. It reports false
// when fewer than three points remain or the design is singular.
func solve(xs, ys, ws []float64, inlier []bool) (lineFit, bool) {
	m := 0
	sumW, sumWX, sumWY := 0.0, 0.0, 0.0
	for i := range xs {
		if !inlier[i] {
			continue
		}
		m++
		sumW += ws[i]
		sumWX += ws[i] * xs[i]
		sumWY += ws[i] * ys[i]
	}
	if m < 3 || sumW <= 0 {
		return lineFit{}, false
	}

	meanX := sumWX / sumW
	meanY := sumWY / sumW

	sxx, sxy := 0.0, 0.0
	for i := range xs {
		if !inlier[i] {
			continue
		}
		dx := xs[i] - meanX
		sxx += ws[i] * dx * dx
		sxy += ws[i] * dx * (ys[i] - meanY)
	}
	if sxx <= 0 {
		return lineFit{}, false
	}

	slope := sxy / sxx
	intercept := meanY - slope*meanX

	chi2 := 0.0
	for i := range xs {
		if !inlier[i] {
			continue
		}
		r := ys[i] - (slope*xs[i] + intercept)
		chi2 += ws[i] * r * r
	}
	variance := chi2 / float64(m-2)
	stderr := math.Sqrt(variance / sxx)

	return lineFit{slope: slope, intercept: intercept, slopeStderr: stderr}, true
}

// residualFloor is the scale below which residuals are treated as numerical
// noise rather than measurement scatter.
func residualFloor(ys []float64) float64 {
	maxAbs := 0.0
	for _, y := range ys {
		if a := math.Abs(y); a > maxAbs {
			maxAbs = a
		}
	}
	if maxAbs == 0 {
		return 1e-12
	}
	return 1e-9 * maxAbs
}
