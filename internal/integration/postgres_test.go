//go:build integration

package integration_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/couchcryptid/weather-alerts/internal/adapter/postgres"
	"github.com/couchcryptid/weather-alerts/internal/observability"
	"github.com/couchcryptid/weather-alerts/internal/subscription"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(ctx context.Context, t *testing.T) string {
	t.Helper()

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "alerts",
				"POSTGRES_PASSWORD": "alerts",
				"POSTGRES_DB":       "alerts",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
	return fmt.Sprintf("postgres://alerts:alerts@%s:%s/alerts?sslmode=disable", host, port.Port())
}

// TestPostgresStoreRoundTrip persists subscriptions through the service and
// reads them back, including records without coordinates.
func TestPostgresStoreRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	store, err := postgres.Open(ctx, startPostgres(ctx, t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.EnsureSchema(ctx))
	require.NoError(t, store.EnsureSchema(ctx), "schema creation is idempotent")

	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	svc := subscription.NewService(store, nil, clock, discardLogger(), observability.NewMetricsForTesting())

	lat, lon := 6.5244, 3.3792
	_, err = svc.Subscribe(ctx, subscription.Request{
		Method: "email", Email: "ada@example.com", City: "Lagos", Country: "NG", Lat: &lat, Lon: &lon,
	})
	require.NoError(t, err)
	clock.Advance(time.Minute)
	_, err = svc.Subscribe(ctx, subscription.Request{Method: "sms", Phone: "+2348000000000", Email: "b@example.com"})
	require.NoError(t, err)

	records, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "Lagos", records[0].City)
	require.NotNil(t, records[0].Lat)
	assert.InDelta(t, lat, *records[0].Lat, 1e-9)
	assert.Equal(t, clock.Now().Add(-time.Minute), records[0].TS)

	assert.Equal(t, subscription.MethodSMS, records[1].Method)
	assert.Nil(t, records[1].Lat)
	assert.Nil(t, records[1].Lon)
	assert.Empty(t, records[1].City)
	require.NoError(t, store.CheckReadiness(ctx))
}
