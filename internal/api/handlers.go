package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/vacstack/outgas-engine/internal/convert"
	"github.com/vacstack/outgas-engine/internal/engine"
	"github.com/vacstack/outgas-engine/internal/metrics"
	"github.com/vacstack/outgas-engine/internal/models"
	"github.com/vacstack/outgas-engine/internal/utils"
)

// Runner abstracts the pipeline for the HTTP layer.
type Runner interface {
	Run(ctx context.Context, req engine.Request) (engine.Result, error)
}

// Handler serves the outgas-engine HTTP API.
type Handler struct {
	logger        *slog.Logger
	pipeline      Runner
	defaultSensor string
	latencies     *utils.LatencyTracker
}

// NewHandler constructs the API handler around a pipeline.
func NewHandler(logger *slog.Logger, pipeline Runner, defaultSensor string) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:        logger,
		pipeline:      pipeline,
		defaultSensor: defaultSensor,
		latencies:     utils.NewLatencyTracker(1024),
	}
}

// Routes registers the API endpoints on a mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/outgas/run", h.handleRun)
	mux.HandleFunc("/healthz", h.handleHealth)
}

type runRequest struct {
	SensorID string `json:"sensor_id"`
	Start    string `json:"start"`
	End      string `json:"end"`
}

type resultPayload struct {
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	Rate            float64   `json:"rate"`
	RatePerHour     float64   `json:"rate_per_hour"`
	RateUncertainty float64   `json:"rate_uncertainty"`
	SampleCount     int       `json:"sample_count"`
}

type rejectionPayload struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Reason string    `json:"reason"`
}

type diagnosticsPayload struct {
	SamplesLoaded      int                `json:"samples_loaded"`
	IntervalsExtracted int                `json:"intervals_extracted"`
	IntervalsConverted int                `json:"intervals_converted"`
	Rejections         []rejectionPayload `json:"rejections,omitempty"`
	NegativeRates      int                `json:"negative_rates,omitempty"`
}

type runResponse struct {
	Results     []resultPayload    `json:"results"`
	Diagnostics diagnosticsPayload `json:"diagnostics"`
	Error       string             `json:"error,omitempty"`
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var body runRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.SensorID == "" {
		body.SensorID = h.defaultSensor
	}
	start, err := utils.ParseRFC3339(body.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "start must be RFC3339")
		return
	}
	end, err := utils.ParseRFC3339(body.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, "end must be RFC3339")
		return
	}
	if !end.After(start) {
		writeError(w, http.StatusBadRequest, "end must be after start")
		return
	}

	began := time.Now()
	result, err := h.pipeline.Run(r.Context(), engine.Request{
		SensorID: body.SensorID,
		Window:   models.TimeRange{Start: start, End: end},
	})
	duration := time.Since(began)

	switch {
	case err == nil:
		metrics.ObserveRun(duration, metrics.OutcomeSuccess)
	case errors.Is(err, engine.ErrDataUnavailable):
		// Diagnostic, not fatal: the caller gets an empty result set.
		metrics.ObserveRun(duration, metrics.OutcomeNoData)
		writeJSON(w, http.StatusOK, toRunResponse(result, err.Error()))
		return
	case errors.Is(err, convert.ErrInvalidGeometry):
		metrics.ObserveRun(duration, metrics.OutcomeError)
		h.logger.Error("run aborted on invalid geometry", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	default:
		metrics.ObserveRun(duration, metrics.OutcomeError)
		h.logger.Error("pipeline run failed", slog.Any("error", err))
		writeError(w, http.StatusBadGateway, "pipeline run failed")
		return
	}

	h.latencies.Observe(duration)
	if count := h.latencies.Count(); count >= 20 && count%20 == 0 {
		h.logger.Info("run latency", slog.Duration("p95", h.latencies.Percentile(95)), slog.Int("samples", count))
	}
	reportIntervalMetrics(result.Diagnostics)

	writeJSON(w, http.StatusOK, toRunResponse(result, ""))
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func toRunResponse(result engine.Result, errMsg string) runResponse {
	resp := runResponse{
		Results: make([]resultPayload, 0, len(result.Results)),
		Diagnostics: diagnosticsPayload{
			SamplesLoaded:      result.Diagnostics.SamplesLoaded,
			IntervalsExtracted: result.Diagnostics.IntervalsExtracted,
			IntervalsConverted: result.Diagnostics.IntervalsConverted,
			NegativeRates:      result.Diagnostics.NegativeRates,
		},
		Error: errMsg,
	}
	for _, r := range result.Results {
		resp.Results = append(resp.Results, resultPayload{
			Start:           r.Window.Start,
			End:             r.Window.End,
			Rate:            r.Rate,
			RatePerHour:     utils.PerHour(r.Rate),
			RateUncertainty: r.RateUncertainty,
			SampleCount:     r.SampleCount,
		})
	}
	for _, rej := range result.Diagnostics.Rejections {
		resp.Diagnostics.Rejections = append(resp.Diagnostics.Rejections, rejectionPayload{
			Start:  rej.Window.Start,
			End:    rej.Window.End,
			Reason: string(rej.Reason),
		})
	}
	return resp
}

func reportIntervalMetrics(diag models.Diagnostics) {
	rejected := make(map[string]int, len(diag.Rejections))
	for _, rej := range diag.Rejections {
		rejected[string(rej.Reason)]++
	}
	metrics.ObserveIntervals(diag.IntervalsExtracted, rejected)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
