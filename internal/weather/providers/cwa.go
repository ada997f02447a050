package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-gdd/internal/weather"
)

// DefaultCWABaseURL is the automatic station observation dataset.
const DefaultCWABaseURL = "https://opendata.cwa.gov.tw/api/v1/rest/datastore/O-A0001-001"

var (
	errMissingAPIKey = errors.New("cwa api key is not configured")
	errAPIRejected   = errors.New("cwa api reported failure")
)

// CWAConfig configures the CWA open data client.
type CWAConfig struct {
	APIKey  string
	BaseURL string
	Limit   int
	Backoff BackoffConfig
}

// CWAProvider implements weather.Provider for the CWA open data API.
type CWAProvider struct {
	name    string
	apiKey  string
	baseURL string
	limit   int
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

var _ weather.Provider = (*CWAProvider)(nil)

func NewCWAProvider(client *http.Client, cfg CWAConfig) *CWAProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultCWABaseURL
	}
	if cfg.Backoff == (BackoffConfig{}) {
		cfg.Backoff = DefaultBackoff
	}

	return &CWAProvider{
		name:    "cwa",
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		limit:   cfg.Limit,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: cfg.Backoff,
		},
		circuit: newCircuitBreaker("cwa"),
	}
}

func (p *CWAProvider) Name() string {
	return p.name
}

// Fetch requests the latest observations for stationID. The payload is
// returned as-is; entry filtering happens in weather.ParseStationPayload.
func (p *CWAProvider) Fetch(ctx context.Context, stationID string) (weather.StationPayload, error) {
	if p.apiKey == "" {
		return weather.StationPayload{}, errMissingAPIKey
	}

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("Authorization", p.apiKey)
		values.Set("StationId", stationID)
		if p.limit > 0 {
			values.Set("limit", strconv.Itoa(p.limit))
		}

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	body, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.StationPayload{}, err
	}

	var envelope struct {
		Success string `json:"success"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Success == "false" {
		return weather.StationPayload{}, errAPIRejected
	}

	var payload weather.StationPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return weather.StationPayload{}, fmt.Errorf("decode cwa response: %w", err)
	}
	return payload, nil
}
