package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vacstack/outgas-engine/internal/convert"
	"github.com/vacstack/outgas-engine/internal/engine"
	"github.com/vacstack/outgas-engine/internal/models"
)

type fakeRunner struct {
	result  engine.Result
	err     error
	lastReq engine.Request
}

func (f *fakeRunner) Run(_ context.Context, req engine.Request) (engine.Result, error) {
	f.lastReq = req
	return f.result, f.err
}

func postRun(t *testing.T, handler *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	handler.Routes(mux)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/outgas/run", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHandleRunSuccess(t *testing.T) {
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	runner := &fakeRunner{
		result: engine.Result{
			Results: []models.OutgasResult{{
				Window:          models.TimeRange{Start: start, End: start.Add(time.Minute)},
				Rate:            0.5,
				RateUncertainty: 0.01,
				SampleCount:     60,
			}},
			Diagnostics: models.Diagnostics{
				SamplesLoaded:      60,
				IntervalsExtracted: 1,
				IntervalsConverted: 1,
			},
		},
	}
	handler := NewHandler(nil, runner, "Ch2")

	rec := postRun(t, handler, `{"start":"2026-08-01T12:00:00Z","end":"2026-08-01T13:00:00Z"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Results []struct {
			Rate        float64 `json:"rate"`
			RatePerHour float64 `json:"rate_per_hour"`
			SampleCount int     `json:"sample_count"`
		} `json:"results"`
		Diagnostics struct {
			SamplesLoaded int `json:"samples_loaded"`
		} `json:"diagnostics"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("got %d results, want 1", len(resp.Results))
	}
	if resp.Results[0].Rate != 0.5 {
		t.Errorf("rate = %v, want 0.5", resp.Results[0].Rate)
	}
	if resp.Results[0].RatePerHour != 1800.0 {
		t.Errorf("rate_per_hour = %v, want 1800", resp.Results[0].RatePerHour)
	}
	if resp.Diagnostics.SamplesLoaded != 60 {
		t.Errorf("samples_loaded = %d, want 60", resp.Diagnostics.SamplesLoaded)
	}
	if resp.Error != "" {
		t.Errorf("unexpected error field %q", resp.Error)
	}

	if runner.lastReq.SensorID != "Ch2" {
		t.Errorf("sensor = %q, want default Ch2", runner.lastReq.SensorID)
	}
	wantStart := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	if !runner.lastReq.Window.Start.Equal(wantStart) {
		t.Errorf("window start = %v, want %v", runner.lastReq.Window.Start, wantStart)
	}
}

func TestHandleRunExplicitSensor(t *testing.T) {
	runner := &fakeRunner{}
	handler := NewHandler(nil, runner, "Ch2")

	rec := postRun(t, handler, `{"sensor_id":"Ch7","start":"2026-08-01T12:00:00Z","end":"2026-08-01T13:00:00Z"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if runner.lastReq.SensorID != "Ch7" {
		t.Errorf("sensor = %q, want Ch7", runner.lastReq.SensorID)
	}
}

func TestHandleRunBadInput(t *testing.T) {
	handler := NewHandler(nil, &fakeRunner{}, "Ch2")

	for name, body := range map[string]string{
		"malformed json":   `{"start":`,
		"bad start":        `{"start":"yesterday","end":"2026-08-01T13:00:00Z"}`,
		"bad end":          `{"start":"2026-08-01T12:00:00Z","end":"later"}`,
		"inverted window":  `{"start":"2026-08-01T13:00:00Z","end":"2026-08-01T12:00:00Z"}`,
		"zero-length span": `{"start":"2026-08-01T12:00:00Z","end":"2026-08-01T12:00:00Z"}`,
	} {
		if rec := postRun(t, handler, body); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", name, rec.Code)
		}
	}
}

func TestHandleRunMethodNotAllowed(t *testing.T) {
	handler := NewHandler(nil, &fakeRunner{}, "Ch2")
	mux := http.NewServeMux()
	handler.Routes(mux)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/outgas/run", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestHandleRunNoData(t *testing.T) {
	runner := &fakeRunner{
		result: engine.Result{Diagnostics: models.Diagnostics{SamplesLoaded: 1}},
		err:    engine.ErrDataUnavailable,
	}
	handler := NewHandler(nil, runner, "Ch2")

	rec := postRun(t, handler, `{"start":"2026-08-01T12:00:00Z","end":"2026-08-01T13:00:00Z"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (no data is diagnostic, not fatal)", rec.Code)
	}

	var resp runResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Results) != 0 {
		t.Errorf("got %d results, want none", len(resp.Results))
	}
	if resp.Error == "" {
		t.Error("error field empty, want no-data explanation")
	}
	if resp.Diagnostics.SamplesLoaded != 1 {
		t.Errorf("samples_loaded = %d, want 1", resp.Diagnostics.SamplesLoaded)
	}
}

func TestHandleRunInvalidGeometry(t *testing.T) {
	runner := &fakeRunner{err: convert.ErrInvalidGeometry}
	handler := NewHandler(nil, runner, "Ch2")

	rec := postRun(t, handler, `{"start":"2026-08-01T12:00:00Z","end":"2026-08-01T13:00:00Z"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestHandleRunRejectionsInResponse(t *testing.T) {
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	runner := &fakeRunner{
		result: engine.Result{
			Diagnostics: models.Diagnostics{
				SamplesLoaded:      30,
				IntervalsExtracted: 1,
				Rejections: []models.Rejection{{
					Window: models.TimeRange{Start: start, End: start.Add(30 * time.Second)},
					Reason: models.ReasonInsufficientFit,
				}},
			},
		},
	}
	handler := NewHandler(nil, runner, "Ch2")

	rec := postRun(t, handler, `{"start":"2026-08-01T12:00:00Z","end":"2026-08-01T13:00:00Z"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp runResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Diagnostics.Rejections) != 1 {
		t.Fatalf("got %d rejections, want 1", len(resp.Diagnostics.Rejections))
	}
	if resp.Diagnostics.Rejections[0].Reason != string(models.ReasonInsufficientFit) {
		t.Errorf("rejection reason = %q, want %q",
			resp.Diagnostics.Rejections[0].Reason, models.ReasonInsufficientFit)
	}
}

func TestHealthz(t *testing.T) {
	handler := NewHandler(nil, &fakeRunner{}, "Ch2")
	mux := http.NewServeMux()
	handler.Routes(mux)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != "ok" {
		t.Errorf("body = %q, want %q", got, "ok")
	}
}
