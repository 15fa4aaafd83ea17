package mapbox

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/couchcryptid/weather-alerts/internal/domain"
	"github.com/couchcryptid/weather-alerts/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testToken         = "test-token"
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func testMetrics() *observability.Metrics {
	return observability.NewMetricsForTesting()
}

func testClient(baseURL string) *Client {
	return &Client{
		token:      testToken,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
		metrics:    testMetrics(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestClient_LookupByQuery_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "Lagos, Lagos State, Nigeria")
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, testToken, r.URL.Query().Get("access_token"))

		resp := response{
			Features: []feature{
				{
					Center:    []float64{3.3792, 6.5244},
					PlaceName: "Lagos, Lagos, Nigeria",
					Text:      "Lagos",
					Relevance: 0.95,
				},
			},
		}
		w.Header().Set(headerContentType, contentTypeJSON)
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	got, err := c.LookupByQuery(context.Background(), "Lagos, Lagos State, Nigeria")
	require.NoError(t, err)

	assert.Equal(t, domain.Coordinates{Lat: 6.5244, Lon: 3.3792}, got)
	assert.InDelta(t, 1, testutil.ToFloat64(c.metrics.GeocodeRequests.WithLabelValues("forward", "success")), 0)
}

func TestClient_LookupByCoordinates_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "3.379200,6.524400")

		resp := response{
			Features: []feature{
				{
					Center: []float64{3.38, 6.52},
					Text:   "Lagos",
					Context: []contextEntry{
						{ID: "region.9001", Text: "Lagos", ShortCode: "NG-LA"},
						{ID: "country.8001", Text: "Nigeria", ShortCode: "ng"},
					},
				},
			},
		}
		w.Header().Set(headerContentType, contentTypeJSON)
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	got, err := c.LookupByCoordinates(context.Background(), 6.5244, 3.3792)
	require.NoError(t, err)

	assert.Equal(t, domain.ReverseResult{
		Coordinates: domain.Coordinates{Lat: 6.5244, Lon: 3.3792},
		Place:       domain.Place{City: "Lagos", State: "Lagos", Country: "Nigeria", CountryCode: "NG"},
	}, got)
}

func TestClient_LookupByQuery_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		require.NoError(t, json.NewEncoder(w).Encode(response{Features: []feature{}}))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.LookupByQuery(context.Background(), "NONEXISTENT")
	require.ErrorIs(t, err, domain.ErrNoMatch)
	require.ErrorIs(t, err, domain.ErrGeocodeFailure)
	assert.InDelta(t, 1, testutil.ToFloat64(c.metrics.GeocodeRequests.WithLabelValues("forward", "empty")), 0)
}

func TestClient_LookupByQuery_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Not Authorized"}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	c.token = "bad-token"

	_, err := c.LookupByQuery(context.Background(), "Lagos")
	require.ErrorIs(t, err, domain.ErrGeocodeFailure)
	assert.NotErrorIs(t, err, domain.ErrNoMatch)
	assert.Contains(t, err.Error(), "401")
}

func TestClient_LookupByCoordinates_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	c.httpClient = &http.Client{Timeout: 50 * time.Millisecond}

	_, err := c.LookupByCoordinates(context.Background(), 6.5, 3.3)
	require.ErrorIs(t, err, domain.ErrGeocodeFailure)
}
