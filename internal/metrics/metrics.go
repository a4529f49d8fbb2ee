package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels pipeline runs that produced a result set.
	OutcomeSuccess = "success"
	// OutcomeNoData labels runs rejected for missing or insufficient data.
	OutcomeNoData = "no_data"
	// OutcomeError labels failed runs (bad geometry or dependency issues).
	OutcomeError = "error"
)

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "outgas",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs handled, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	runDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "outgas",
			Name:      "run_seconds",
			Help:      "Pipeline run latency in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8},
		},
	)

	intervalsExtracted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "outgas",
			Name:      "intervals_extracted_total",
			Help:      "Rise intervals extracted from loaded series.",
		},
	)

	intervalsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "outgas",
			Name:      "intervals_rejected_total",
			Help:      "Rise intervals omitted from results, partitioned by reason.",
		},
		[]string{"reason"},
	)

	readingsFetched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "outgas",
			Name:      "readings_fetched_total",
			Help:      "Pressure readings fetched from the gauge-log source.",
		},
	)
)

// Register attaches outgas-engine collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		runsTotal,
		runDurationSeconds,
		intervalsExtracted,
		intervalsRejected,
		readingsFetched,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveRun records a pipeline run duration and outcome label.
func ObserveRun(duration time.Duration, outcome string) {
	switch outcome {
	case OutcomeNoData, OutcomeError:
	default:
		outcome = OutcomeSuccess
	}
	runsTotal.WithLabelValues(outcome).Inc()
	if duration < 0 {
		duration = 0
	}
	runDurationSeconds.Observe(duration.Seconds())
}

// ObserveIntervals records extraction and rejection counts for one run.
func ObserveIntervals(extracted int, rejectedByReason map[string]int) {
	if extracted > 0 {
		intervalsExtracted.Add(float64(extracted))
	}
	for reason, count := range rejectedByReason {
		if count > 0 {
			intervalsRejected.WithLabelValues(reason).Add(float64(count))
		}
	}
}

// ObserveReadings records how many samples a fetch returned.
func ObserveReadings(count int) {
	if count > 0 {
		readingsFetched.Add(float64(count))
	}
}
