package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/vacstack/outgas-engine/internal/cache"
	"github.com/vacstack/outgas-engine/internal/gauge"
	"github.com/vacstack/outgas-engine/internal/metrics"
	"github.com/vacstack/outgas-engine/internal/models"
)

// ErrNoReadings signals that the source returned zero samples for the
// requested sensor and window.
var ErrNoReadings = errors.New("no readings available")

// GaugeLogClient fetches pressure readings from the gauge-log service and
// attaches per-sample uncertainties according to the configured error model.
type GaugeLogClient struct {
	baseURL      string
	readingsPath string
	httpClient   *http.Client
	cache        cache.Provider
	cacheTTL     time.Duration
	errorModel   gauge.ErrorModel
	constSigma   float64
}

// NewGaugeLogClient constructs a client targeting the configured gauge-log
// instance. cacheProvider may be nil to disable caching.
func NewGaugeLogClient(baseURL, readingsPath string, timeout time.Duration, cacheProvider cache.Provider, cacheTTL time.Duration, model gauge.ErrorModel, constSigma float64) *GaugeLogClient {
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &GaugeLogClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		readingsPath: readingsPath,
		httpClient:   &http.Client{Timeout: timeout},
		cache:        cacheProvider,
		cacheTTL:     cacheTTL,
		errorModel:   model,
		constSigma:   constSigma,
	}
}

type readingPayload struct {
	Timestamp time.Time `json:"timestamp"`
	Pressure  float64   `json:"pressure"`
}

// FetchReadings queries the gauge-log service for samples in [start, end].
// Zero samples surface as ErrNoReadings, transient transport failures are
// retried with exponential backoff bounded by the request context.
func (c *GaugeLogClient) FetchReadings(ctx context.Context, sensorID string, start, end time.Time) ([]models.Sample, error) {
	if c == nil {
		return nil, fmt.Errorf("gauge-log client not initialised")
	}
	if c.baseURL == "" {
		return nil, fmt.Errorf("gauge-log base URL not configured")
	}

	key := fmt.Sprintf("readings:%s:%d:%d", sensorID, start.Unix(), end.Unix())
	if data, err := c.cache.Get(ctx, key); err == nil {
		var cached []readingPayload
		if err := json.Unmarshal(data, &cached); err == nil {
			return c.toSamples(cached)
		}
	}

	payload := map[string]interface{}{
		"sensor_id": sensorID,
		"start":     start.Format(time.RFC3339),
		"end":       end.Format(time.RFC3339),
	}

	var response struct {
		Readings []readingPayload `json:"readings"`
	}

	fetch := func() error {
		return c.postJSON(ctx, c.readingsURL(), payload, &response)
	}
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 30 * time.Second
	if err := backoff.Retry(fetch, backoff.WithContext(policy, ctx)); err != nil {
		return nil, fmt.Errorf("gauge-log readings request failed: %w", err)
	}

	if len(response.Readings) == 0 {
		return nil, ErrNoReadings
	}
	metrics.ObserveReadings(len(response.Readings))

	if c.cacheTTL > 0 {
		if data, err := json.Marshal(response.Readings); err == nil {
			_ = c.cache.Set(ctx, key, data, c.cacheTTL)
		}
	}

	return c.toSamples(response.Readings)
}

func (c *GaugeLogClient) toSamples(readings []readingPayload) ([]models.Sample, error) {
	if len(readings) == 0 {
		return nil, ErrNoReadings
	}
	samples := make([]models.Sample, 0, len(readings))
	for _, r := range readings {
		samples = append(samples, models.Sample{
			Time:     r.Timestamp,
			Pressure: r.Pressure,
			Sigma:    c.errorModel.Sigma(r.Pressure, c.constSigma),
		})
	}
	return samples, nil
}

func (c *GaugeLogClient) readingsURL() string {
	cleaned := "/" + strings.TrimLeft(c.readingsPath, "/")
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return c.baseURL + cleaned
	}
	u.Path = path.Join(u.Path, cleaned)
	return u.String()
}

func (c *GaugeLogClient) postJSON(ctx context.Context, endpoint string, payload any, out any) error {
	if endpoint == "" {
		return fmt.Errorf("empty endpoint")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("marshal payload: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 500:
		return fmt.Errorf("gauge-log returned %s", resp.Status)
	default:
		return backoff.Permanent(fmt.Errorf("gauge-log returned %s", resp.Status))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return backoff.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return nil
}
