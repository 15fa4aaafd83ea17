package mapbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/weather-alerts/internal/domain"
	"github.com/couchcryptid/weather-alerts/internal/observability"
)

const defaultBaseURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"

// Client implements domain.Geocoder using the Mapbox Geocoding API.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Mapbox geocoding client.
func NewClient(token string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: defaultBaseURL,
		metrics: metrics,
		logger:  logger,
	}
}

// LookupByQuery converts a free-text place query to coordinates.
func (c *Client) LookupByQuery(ctx context.Context, query string) (domain.Coordinates, error) {
	u := fmt.Sprintf("%s/%s.json", c.baseURL, url.PathEscape(query))
	params := url.Values{
		"access_token": {c.token},
		"limit":        {"1"},
		"types":        {"place,locality"},
	}

	f, err := c.doRequest(ctx, u+"?"+params.Encode(), "forward")
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("%w: %q: %w", domain.ErrGeocodeFailure, query, err)
	}
	if f == nil || len(f.Center) != 2 {
		return domain.Coordinates{}, fmt.Errorf("%w: %w for %q", domain.ErrGeocodeFailure, domain.ErrNoMatch, query)
	}
	return domain.Coordinates{Lat: f.Center[1], Lon: f.Center[0]}, nil
}

// LookupByCoordinates converts a point to place names. The result echoes lat/lon.
func (c *Client) LookupByCoordinates(ctx context.Context, lat, lon float64) (domain.ReverseResult, error) {
	// Mapbox uses lon,lat order.
	coord := fmt.Sprintf("%.6f,%.6f", lon, lat)
	u := fmt.Sprintf("%s/%s.json", c.baseURL, coord)
	params := url.Values{
		"access_token": {c.token},
		"limit":        {"1"},
		"types":        {"place"},
	}

	f, err := c.doRequest(ctx, u+"?"+params.Encode(), "reverse")
	if err != nil {
		return domain.ReverseResult{}, fmt.Errorf("%w: reverse (%v, %v): %w", domain.ErrGeocodeFailure, lat, lon, err)
	}
	if f == nil {
		return domain.ReverseResult{}, fmt.Errorf("%w: %w at (%v, %v)", domain.ErrGeocodeFailure, domain.ErrNoMatch, lat, lon)
	}

	res := domain.ReverseResult{
		Coordinates: domain.Coordinates{Lat: lat, Lon: lon},
		Place:       domain.Place{City: f.Text},
	}
	for _, ctxEntry := range f.Context {
		switch {
		case strings.HasPrefix(ctxEntry.ID, "region."):
			res.State = ctxEntry.Text
		case strings.HasPrefix(ctxEntry.ID, "country."):
			res.Country = ctxEntry.Text
			res.CountryCode = strings.ToUpper(ctxEntry.ShortCode)
		}
	}
	return res, nil
}

// doRequest returns the first feature, or nil when there is none.
func (c *Client) doRequest(ctx context.Context, fullURL, method string) (*feature, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.UpstreamDuration.WithLabelValues("mapbox_" + method).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues(method, "error").Inc()
		return nil, fmt.Errorf("%s geocode request: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.GeocodeRequests.WithLabelValues(method, "error").Inc()
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("mapbox API error: status %d: %s", resp.StatusCode, body)
	}

	var mapboxResp response
	if err := json.NewDecoder(resp.Body).Decode(&mapboxResp); err != nil {
		c.metrics.GeocodeRequests.WithLabelValues(method, "error").Inc()
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(mapboxResp.Features) == 0 {
		c.metrics.GeocodeRequests.WithLabelValues(method, "empty").Inc()
		return nil, nil
	}
	c.metrics.GeocodeRequests.WithLabelValues(method, "success").Inc()
	return &mapboxResp.Features[0], nil
}

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	Center    []float64      `json:"center"` // [lon, lat]
	PlaceName string         `json:"place_name"`
	Text      string         `json:"text"`
	Relevance float64        `json:"relevance"`
	Context   []contextEntry `json:"context"`
}

type contextEntry struct {
	ID        string `json:"id"` // e.g. "region.123", "country.456"
	Text      string `json:"text"`
	ShortCode string `json:"short_code"`
}

var _ domain.Geocoder = (*Client)(nil)
