package repo

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vacstack/outgas-engine/internal/gauge"
)

func writePressureLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pressure.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write pressure log: %v", err)
	}
	return path
}

func TestCSVFileSourceReadsLog(t *testing.T) {
	path := writePressureLog(t, "Time,Ch2\n"+
		"1756728000,1.5\n"+
		"1756728001.5,1.6\n"+
		"1756728003,1.7\n")

	source := NewCSVFileSource(path, gauge.ModelConstant, 0.05)
	samples, err := source.FetchReadings(context.Background(), "Ch2", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("FetchReadings returned error: %v", err)
	}
	if len(samples) != 3 {
		t.Fatalf("got %d samples, want 3", len(samples))
	}

	want := time.Unix(1756728000, 0).UTC()
	if !samples[0].Time.Equal(want) {
		t.Errorf("sample 0 time = %v, want %v", samples[0].Time, want)
	}
	halfSecond := time.Unix(1756728001, 500000000).UTC()
	if !samples[1].Time.Equal(halfSecond) {
		t.Errorf("sample 1 time = %v, want %v (fractional seconds)", samples[1].Time, halfSecond)
	}
	if samples[2].Pressure != 1.7 {
		t.Errorf("sample 2 pressure = %v, want 1.7", samples[2].Pressure)
	}
	for i, s := range samples {
		if s.Sigma != 0.05 {
			t.Errorf("sample %d sigma = %v, want 0.05", i, s.Sigma)
		}
	}
}

func TestCSVFileSourceWindowCut(t *testing.T) {
	path := writePressureLog(t, "Time,Ch2\n"+
		"1756728000,1.0\n"+
		"1756728060,2.0\n"+
		"1756728120,3.0\n")

	source := NewCSVFileSource(path, gauge.ModelNone, 0)
	start := time.Unix(1756728030, 0).UTC()
	end := time.Unix(1756728090, 0).UTC()

	samples, err := source.FetchReadings(context.Background(), "Ch2", start, end)
	if err != nil {
		t.Fatalf("FetchReadings returned error: %v", err)
	}
	if len(samples) != 1 {
		t.Fatalf("got %d samples, want 1", len(samples))
	}
	if samples[0].Pressure != 2.0 {
		t.Errorf("pressure = %v, want 2.0", samples[0].Pressure)
	}
}

func TestCSVFileSourceHeaderOnly(t *testing.T) {
	path := writePressureLog(t, "Time,Ch2\n")
	source := NewCSVFileSource(path, gauge.ModelNone, 0)

	if _, err := source.FetchReadings(context.Background(), "Ch2", time.Time{}, time.Time{}); !errors.Is(err, ErrNoReadings) {
		t.Fatalf("FetchReadings error = %v, want ErrNoReadings", err)
	}
}

func TestCSVFileSourceBadRow(t *testing.T) {
	path := writePressureLog(t, "Time,Ch2\n"+
		"1756728000,not-a-number\n")
	source := NewCSVFileSource(path, gauge.ModelNone, 0)

	if _, err := source.FetchReadings(context.Background(), "Ch2", time.Time{}, time.Time{}); err == nil {
		t.Fatal("FetchReadings succeeded on a malformed row, want error")
	}
}

func TestCSVFileSourceMissingFile(t *testing.T) {
	source := NewCSVFileSource(filepath.Join(t.TempDir(), "absent.csv"), gauge.ModelNone, 0)

	if _, err := source.FetchReadings(context.Background(), "Ch2", time.Time{}, time.Time{}); err == nil {
		t.Fatal("FetchReadings succeeded on a missing file, want error")
	}
}
