package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/vacstack/outgas-engine/internal/models"
)

// WriteCSV writes the result sequence as CSV rows with a header line. Rates
// are emitted in the pipeline's native per-second units.
func WriteCSV(w io.Writer, results []models.OutgasResult) error {
	writer := csv.NewWriter(w)
	header := []string{"start", "end", "rate", "rate_uncertainty", "sample_count"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range results {
		row := []string{
			r.Window.Start.UTC().Format(time.RFC3339),
			r.Window.End.UTC().Format(time.RFC3339),
			strconv.FormatFloat(r.Rate, 'e', 6, 64),
			strconv.FormatFloat(r.RateUncertainty, 'e', 6, 64),
			strconv.Itoa(r.SampleCount),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}
