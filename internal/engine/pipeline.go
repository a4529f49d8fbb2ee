package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vacstack/outgas-engine/internal/convert"
	"github.com/vacstack/outgas-engine/internal/fit"
	"github.com/vacstack/outgas-engine/internal/models"
	"github.com/vacstack/outgas-engine/internal/repo"
	"github.com/vacstack/outgas-engine/internal/segment"
)

// ErrDataUnavailable signals that the source had no usable samples for the
// requested window. The run still yields an empty result set plus
// diagnostics; it is not fatal to the process.
var ErrDataUnavailable = errors.New("no data available")

// ReadingsSource supplies raw samples for a sensor and time window.
type ReadingsSource interface {
	FetchReadings(ctx context.Context, sensorID string, start, end time.Time) ([]models.Sample, error)
}

// Config gathers the per-run tuning for all pipeline stages.
type Config struct {
	Segment       segment.Config
	Fit           fit.Config
	Geometry      convert.Geometry
	StartPressure float64
	// FitWorkers bounds the number of concurrent interval fits. Fits share no
	// state and results are recombined by interval index, so output ordering
	// does not depend on completion order.
	FitWorkers int
}

// Request identifies the series to analyse.
type Request struct {
	SensorID string
	Window   models.TimeRange
}

// Result is the terminal pipeline output: converted rates in chronological
// order plus a diagnostics record explaining omissions.
type Result struct {
	Results     []models.OutgasResult
	Diagnostics models.Diagnostics
}

// Pipeline runs load -> segment -> fit -> convert over one pressure series.
type Pipeline struct {
	logger    *slog.Logger
	source    ReadingsSource
	extractor *segment.Extractor
	cfg       Config
}

// NewPipeline constructs a pipeline over the given source.
func NewPipeline(logger *slog.Logger, source ReadingsSource, cfg Config) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		logger:    logger,
		source:    source,
		extractor: segment.NewExtractor(),
		cfg:       cfg,
	}
}

// Run executes the full pipeline for one request. Interval-local failures are
// converted into omissions recorded in the diagnostics; ErrDataUnavailable
// and convert.ErrInvalidGeometry propagate to the caller.
func (p *Pipeline) Run(ctx context.Context, req Request) (Result, error) {
	if p.source == nil {
		return Result{}, fmt.Errorf("readings source not configured")
	}
	if err := p.cfg.Geometry.Validate(); err != nil {
		return Result{}, err
	}

	raw, err := p.source.FetchReadings(ctx, req.SensorID, req.Window.Start, req.Window.End)
	if err != nil {
		if errors.Is(err, repo.ErrNoReadings) {
			return Result{}, ErrDataUnavailable
		}
		return Result{}, fmt.Errorf("fetch readings: %w", err)
	}

	series := models.Normalize(raw).FilterAbove(p.cfg.StartPressure)
	diag := models.Diagnostics{SamplesLoaded: len(series)}
	if len(series) < 2 {
		return Result{Diagnostics: diag}, ErrDataUnavailable
	}

	intervals := p.extractor.Extract(series, p.cfg.Segment)
	diag.IntervalsExtracted = len(intervals)
	if len(intervals) == 0 {
		p.logger.Debug("no rise intervals in window",
			slog.String("sensor", req.SensorID), slog.Int("samples", len(series)))
		return Result{Diagnostics: diag}, nil
	}

	estimates := p.fitAll(ctx, series, intervals)

	results := make([]models.OutgasResult, 0, len(estimates))
	for _, est := range estimates {
		if !est.Valid {
			diag.Rejections = append(diag.Rejections, models.Rejection{
				Window: est.Interval.Window(series),
				Reason: est.Reason,
			})
			p.logger.Debug("interval rejected",
				slog.String("reason", string(est.Reason)),
				slog.Float64("inlier_fraction", est.InlierFraction))
			continue
		}
		result, err := convert.Convert(series, est, p.cfg.Geometry)
		if err != nil {
			if errors.Is(err, convert.ErrInvalidGeometry) {
				return Result{}, err
			}
			diag.Rejections = append(diag.Rejections, models.Rejection{
				Window: est.Interval.Window(series),
				Reason: models.ReasonInsufficientFit,
			})
			continue
		}
		if result.Rate < 0 {
			diag.NegativeRates++
			p.logger.Warn("negative outgassing rate, possible residual pumping",
				slog.Float64("rate", result.Rate),
				slog.Time("start", result.Window.Start))
		}
		results = append(results, result)
	}
	diag.IntervalsConverted = len(results)

	return Result{Results: results, Diagnostics: diag}, nil
}

// fitAll fits every interval, spreading independent fits across a bounded
// worker pool. The estimates slice is addressed by interval index, keeping
// output deterministic regardless of scheduling.
func (p *Pipeline) fitAll(ctx context.Context, series models.Series, intervals []models.RiseInterval) []models.RateEstimate {
	workers := p.cfg.FitWorkers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(intervals) {
		workers = len(intervals)
	}

	estimates := make([]models.RateEstimate, len(intervals))
	if workers == 1 {
		for i, interval := range intervals {
			estimates[i] = fit.Fit(series, interval, p.cfg.Fit)
		}
		return estimates
	}

	indices := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indices {
				estimates[i] = fit.Fit(series, intervals[i], p.cfg.Fit)
			}
		}()
	}
	for i := range intervals {
		select {
		case indices <- i:
		case <-ctx.Done():
			// Mark the remaining intervals rejected rather than leaving
			// zero-valued estimates behind.
			for j := i; j < len(intervals); j++ {
				estimates[j] = models.RateEstimate{
					Interval: intervals[j],
					Reason:   models.ReasonInsufficientFit,
				}
			}
			close(indices)
			wg.Wait()
			return estimates
		}
	}
	close(indices)
	wg.Wait()
	return estimates
}
