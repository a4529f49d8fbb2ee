package repo

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/vacstack/outgas-engine/internal/gauge"
	"github.com/vacstack/outgas-engine/internal/models"
)

// CSVFileSource reads pressure logs recorded by the measurement bench: a
// header line `Time,<name>` followed by `unixtime,pressure` rows.
type CSVFileSource struct {
	path       string
	errorModel gauge.ErrorModel
	constSigma float64
}

// NewCSVFileSource constructs a reader for an on-disk pressure log.
func NewCSVFileSource(path string, model gauge.ErrorModel, constSigma float64) *CSVFileSource {
	return &CSVFileSource{path: path, errorModel: model, constSigma: constSigma}
}

// FetchReadings loads all samples within [start, end]. Zero-value bounds
// disable the corresponding cut. The sensorID argument is accepted for
// interface compatibility and ignored; a file holds one channel.
func (s *CSVFileSource) FetchReadings(ctx context.Context, sensorID string, start, end time.Time) ([]models.Sample, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open pressure log: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = 2
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read pressure log: %w", err)
	}
	if len(records) < 2 {
		return nil, ErrNoReadings
	}

	samples := make([]models.Sample, 0, len(records)-1)
	for i, record := range records[1:] {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		unixSeconds, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: bad timestamp %q: %w", i+2, record[0], err)
		}
		pressure, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: bad pressure %q: %w", i+2, record[1], err)
		}
		sec, frac := math.Modf(unixSeconds)
		ts := time.Unix(int64(sec), int64(frac*1e9)).UTC()
		if !start.IsZero() && ts.Before(start) {
			continue
		}
		if !end.IsZero() && ts.After(end) {
			continue
		}
		samples = append(samples, models.Sample{
			Time:     ts,
			Pressure: pressure,
			Sigma:    s.errorModel.Sigma(pressure, s.constSigma),
		})
	}
	if len(samples) == 0 {
		return nil, ErrNoReadings
	}
	return samples, nil
}
