//go:build mapbox

package mapbox

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/couchcryptid/weather-alerts/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests hit the real Mapbox API and require a valid MAPBOX_TOKEN env var.
// Run with: go test -tags=mapbox ./internal/adapter/mapbox/ -v -count=1

func smokeClient(t *testing.T) *Client {
	t.Helper()
	token := os.Getenv("MAPBOX_TOKEN")
	if token == "" {
		t.Fatal("MAPBOX_TOKEN must be set to run smoke tests")
	}
	return NewClient(token, 10*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())
}

func TestSmoke_LookupByQuery(t *testing.T) {
	c := smokeClient(t)

	got, err := c.LookupByQuery(context.Background(), "Lagos, Lagos State, Nigeria")
	require.NoError(t, err)

	assert.InDelta(t, 6.52, got.Lat, 0.3, "lat should be near Lagos")
	assert.InDelta(t, 3.38, got.Lon, 0.3, "lon should be near Lagos")
}

func TestSmoke_LookupByCoordinates(t *testing.T) {
	c := smokeClient(t)

	got, err := c.LookupByCoordinates(context.Background(), 6.5244, 3.3792)
	require.NoError(t, err)

	assert.Equal(t, 6.5244, got.Lat)
	assert.NotEmpty(t, got.City)
	assert.Equal(t, "NG", got.CountryCode)
}
