package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	httpadapter "github.com/couchcryptid/weather-alerts/internal/adapter/http"
	"github.com/couchcryptid/weather-alerts/internal/domain"
	"github.com/couchcryptid/weather-alerts/internal/hierarchy"
	"github.com/couchcryptid/weather-alerts/internal/observability"
	"github.com/couchcryptid/weather-alerts/internal/resolver"
	"github.com/couchcryptid/weather-alerts/internal/selection"
	"github.com/couchcryptid/weather-alerts/internal/session"
	"github.com/couchcryptid/weather-alerts/internal/subscription"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var lagos = domain.Coordinates{Lat: 6.5244, Lon: 3.3792}

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type stubGeocoder struct {
	mu         sync.Mutex
	forward    domain.Coordinates
	forwardErr error
	place      domain.Place
	reverseErr error
	queries    []string
}

func (g *stubGeocoder) LookupByQuery(_ context.Context, query string) (domain.Coordinates, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queries = append(g.queries, query)
	return g.forward, g.forwardErr
}

func (g *stubGeocoder) LookupByCoordinates(_ context.Context, lat, lon float64) (domain.ReverseResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.reverseErr != nil {
		return domain.ReverseResult{}, g.reverseErr
	}
	// Providers may round; handlers must not rely on the echo.
	return domain.ReverseResult{Coordinates: domain.Coordinates{Lat: 6.52, Lon: 3.38}, Place: g.place}, nil
}

type stubWeather struct {
	mu    sync.Mutex
	calls int
	w     domain.Weather
	err   error
}

func (s *stubWeather) FetchWeather(_ context.Context, _, _ float64) (domain.Weather, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.w, s.err
}

type stubLocator struct {
	pt  domain.Coordinates
	err error
	got net.IP
}

func (s *stubLocator) Locate(ip net.IP) (domain.Coordinates, error) {
	s.got = ip
	return s.pt, s.err
}

type failingStore struct{}

func (failingStore) Save(context.Context, subscription.Record) error {
	return errors.New("disk full")
}

type fixture struct {
	srv      *httpadapter.Server
	geo      *stubGeocoder
	weather  *stubWeather
	sessions *session.Manager
	store    *subscription.FileStore
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testHierarchy() *hierarchy.Hierarchy {
	return hierarchy.Build([]domain.CityRecord{
		{Name: "Lagos", StateName: "Lagos", CountryName: "Nigeria"},
		{Name: "Ikeja", StateName: "Lagos", CountryName: "Nigeria"},
		{Name: "Abuja", StateName: "Federal Capital Territory", CountryName: "Nigeria"},
		{Name: "Accra", StateName: "Greater Accra", CountryName: "Ghana"},
	})
}

func newFixture(t *testing.T, mutate ...func(*httpadapter.Deps)) *fixture {
	t.Helper()

	logger := discardLogger()
	metrics := observability.NewMetricsForTesting()
	h := testHierarchy()
	geo := &stubGeocoder{
		forward: lagos,
		place:   domain.Place{City: "Lagos", State: "Lagos", Country: "Nigeria", CountryCode: "NG"},
	}
	weather := &stubWeather{w: domain.Weather{
		City: "Lagos", ConditionMain: "Rain", ConditionDesc: "light rain",
		Temp: 27.5, FeelsLike: 30.1, Humidity: 88, WindSpeed: 3.6, Icon: "10d",
	}}

	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	factory := func(sink resolver.EventSink) *resolver.Coordinator {
		return resolver.New(selection.New(), selection.NewCascade(h), geo, weather,
			resolver.WithEventSink(sink), resolver.WithLogger(logger), resolver.WithMetrics(metrics))
	}
	sessions := session.NewManager(factory, time.Hour, clock, logger, metrics)
	store := subscription.NewFileStore(filepath.Join(t.TempDir(), "subscribers.json"))

	deps := httpadapter.Deps{
		Geocoder:      geo,
		Weather:       weather,
		Subscriptions: subscription.NewService(store, nil, clock, logger, metrics),
		Hierarchy:     h,
		Sessions:      sessions,
		Ready:         &mockReadiness{},
	}
	for _, m := range mutate {
		m(&deps)
	}
	return &fixture{
		srv:      httpadapter.NewServer(":0", deps, logger),
		geo:      geo,
		weather:  weather,
		sessions: sessions,
		store:    store,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if r != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthzReturns200(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode[map[string]string](t, rec)["status"])
}

func TestLegacyHealthReturnsOK(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{"status": "ok"}, decode[map[string]string](t, rec))
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/readyz", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", decode[map[string]string](t, rec)["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	f := newFixture(t, func(d *httpadapter.Deps) {
		d.Ready = &mockReadiness{err: fmt.Errorf("not ready yet")}
	})
	rec := f.do(t, http.MethodGet, "/readyz", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode[map[string]string](t, rec)
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "not ready yet", body["error"])
}

func TestReadyzWithoutCheckerIsReady(t *testing.T) {
	f := newFixture(t, func(d *httpadapter.Deps) { d.Ready = nil })
	rec := f.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/metrics", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
