// Package openweather implements the geocoding and weather collaborators on
// the OpenWeather Geocoding 1.0 and Current Weather 2.5 APIs.
package openweather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/weather-alerts/internal/domain"
	"github.com/couchcryptid/weather-alerts/internal/observability"
)

// DefaultBaseURL is the public API host.
const DefaultBaseURL = "https://api.openweathermap.org"

// Client implements domain.Geocoder and domain.WeatherProvider.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates an OpenWeather client. An empty baseURL selects DefaultBaseURL.
func NewClient(apiKey, baseURL string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
		metrics: metrics,
	}
}

// LookupByQuery resolves a "city, state, country" query with direct geocoding.
func (c *Client) LookupByQuery(ctx context.Context, query string) (domain.Coordinates, error) {
	params := url.Values{
		"q":     {query},
		"limit": {"1"},
	}
	var places []place
	if err := c.get(ctx, "direct", "/geo/1.0/direct", params, &places); err != nil {
		c.metrics.GeocodeRequests.WithLabelValues("forward", "error").Inc()
		return domain.Coordinates{}, fmt.Errorf("%w: direct %q: %w", domain.ErrGeocodeFailure, query, err)
	}
	if len(places) == 0 {
		c.metrics.GeocodeRequests.WithLabelValues("forward", "empty").Inc()
		return domain.Coordinates{}, fmt.Errorf("%w: %w for %q", domain.ErrGeocodeFailure, domain.ErrNoMatch, query)
	}
	c.metrics.GeocodeRequests.WithLabelValues("forward", "success").Inc()
	return domain.Coordinates{Lat: places[0].Lat, Lon: places[0].Lon}, nil
}

// LookupByCoordinates resolves a point with reverse geocoding. The result
// echoes lat/lon; the provider only returns an ISO country code, which fills
// both Country and CountryCode.
func (c *Client) LookupByCoordinates(ctx context.Context, lat, lon float64) (domain.ReverseResult, error) {
	params := url.Values{
		"lat":   {formatFloat(lat)},
		"lon":   {formatFloat(lon)},
		"limit": {"1"},
	}
	var places []place
	if err := c.get(ctx, "reverse", "/geo/1.0/reverse", params, &places); err != nil {
		c.metrics.GeocodeRequests.WithLabelValues("reverse", "error").Inc()
		return domain.ReverseResult{}, fmt.Errorf("%w: reverse (%v, %v): %w", domain.ErrGeocodeFailure, lat, lon, err)
	}
	if len(places) == 0 {
		c.metrics.GeocodeRequests.WithLabelValues("reverse", "empty").Inc()
		return domain.ReverseResult{}, fmt.Errorf("%w: %w at (%v, %v)", domain.ErrGeocodeFailure, domain.ErrNoMatch, lat, lon)
	}
	c.metrics.GeocodeRequests.WithLabelValues("reverse", "success").Inc()

	p := places[0]
	return domain.ReverseResult{
		Coordinates: domain.Coordinates{Lat: lat, Lon: lon},
		Place: domain.Place{
			City:        p.Name,
			State:       p.State,
			Country:     p.Country,
			CountryCode: p.Country,
		},
	}, nil
}

// FetchWeather returns current conditions in metric units.
func (c *Client) FetchWeather(ctx context.Context, lat, lon float64) (domain.Weather, error) {
	params := url.Values{
		"lat":   {formatFloat(lat)},
		"lon":   {formatFloat(lon)},
		"units": {"metric"},
	}
	var resp weatherResponse
	if err := c.get(ctx, "weather", "/data/2.5/weather", params, &resp); err != nil {
		return domain.Weather{}, fmt.Errorf("%w: %w", domain.ErrWeatherUnavailable, err)
	}
	if code := resp.code(); code != 0 && code != http.StatusOK {
		return domain.Weather{}, fmt.Errorf("%w: cod %d: %s", domain.ErrWeatherUnavailable, code, resp.Message)
	}
	if len(resp.Weather) == 0 {
		return domain.Weather{}, fmt.Errorf("%w: response has no conditions", domain.ErrWeatherUnavailable)
	}

	return domain.Weather{
		City:          resp.Name,
		ConditionMain: resp.Weather[0].Main,
		ConditionDesc: resp.Weather[0].Description,
		Temp:          resp.Main.Temp,
		FeelsLike:     resp.Main.FeelsLike,
		Humidity:      resp.Main.Humidity,
		WindSpeed:     resp.Wind.Speed,
		Icon:          resp.Weather[0].Icon,
	}, nil
}

func (c *Client) get(ctx context.Context, op, path string, params url.Values, out any) error {
	params.Set("appid", c.apiKey)
	fullURL := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.UpstreamDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("%s request: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("openweather API error: status %d: %s", resp.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("openweather API error: status %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// OpenWeather API response types.

type place struct {
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Country string  `json:"country"`
	State   string  `json:"state"`
}

type weatherResponse struct {
	Cod     json.RawMessage `json:"cod"` // number on success, sometimes a string on error
	Message string          `json:"message"`
	Name    string          `json:"name"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

func (r weatherResponse) code() int {
	raw := strings.Trim(string(r.Cod), `"`)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return n
}

var _ domain.Geocoder = (*Client)(nil)
var _ domain.WeatherProvider = (*Client)(nil)
