// Package http exposes the service over HTTP: health and metrics, the
// collaborator operations as JSON endpoints, hierarchy browsing, and
// per-session gestures with a websocket event stream.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/weather-alerts/internal/adapter/geoip"
	"github.com/couchcryptid/weather-alerts/internal/domain"
	"github.com/couchcryptid/weather-alerts/internal/hierarchy"
	"github.com/couchcryptid/weather-alerts/internal/resolver"
	"github.com/couchcryptid/weather-alerts/internal/session"
	"github.com/couchcryptid/weather-alerts/internal/subscription"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxBodyBytes = 1 << 20

// Subscriber accepts subscription requests.
type Subscriber interface {
	Subscribe(ctx context.Context, req subscription.Request) (subscription.Result, error)
}

// IPLocator resolves a client address to approximate coordinates.
type IPLocator interface {
	Locate(ip net.IP) (domain.Coordinates, error)
}

// Deps are the components behind the routes. Locator may be nil, in which
// case locate-ip answers 501. A nil Ready always reports ready.
type Deps struct {
	Geocoder      domain.Geocoder
	Weather       domain.WeatherProvider
	Subscriptions Subscriber
	Hierarchy     *hierarchy.Hierarchy
	Sessions      *session.Manager
	Locator       IPLocator
	Ready         sharedobs.ReadinessChecker
}

// Server is the service's HTTP front end.
type Server struct {
	httpServer *http.Server
	deps       Deps
	logger     *slog.Logger
}

// NewServer creates an HTTP server with every route registered.
func NewServer(addr string, deps Deps, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	if deps.Hierarchy == nil {
		deps.Hierarchy = hierarchy.Empty()
	}
	if deps.Ready == nil {
		deps.Ready = alwaysReady{}
	}
	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		deps:   deps,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(deps.Ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /health", s.handleLegacyHealth)
	mux.HandleFunc("POST /geocode", s.handleGeocode)
	mux.HandleFunc("POST /reverse_geocode", s.handleReverseGeocode)
	mux.HandleFunc("POST /weather_by_coords", s.handleWeatherByCoords)
	mux.HandleFunc("POST /subscribe", s.handleSubscribe)

	mux.HandleFunc("GET /api/countries", s.handleCountries)
	mux.HandleFunc("GET /api/countries/{country}/states", s.handleStates)
	mux.HandleFunc("GET /api/countries/{country}/states/{state}/cities", s.handleCities)

	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.withSession(s.handleGetSession))
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("POST /api/sessions/{id}/country", s.withSession(s.handleChooseCountry))
	mux.HandleFunc("POST /api/sessions/{id}/state", s.withSession(s.handleChooseState))
	mux.HandleFunc("POST /api/sessions/{id}/city", s.withSession(s.handleChooseCity))
	mux.HandleFunc("POST /api/sessions/{id}/point", s.withSession(s.handlePoint))
	mux.HandleFunc("POST /api/sessions/{id}/locate-ip", s.withSession(s.handleLocateIP))
	mux.HandleFunc("POST /api/sessions/{id}/weather", s.withSession(s.handleSessionWeather))
	mux.HandleFunc("POST /api/sessions/{id}/subscribe", s.withSession(s.handleSessionSubscribe))
	mux.HandleFunc("GET /api/sessions/{id}/events", s.withSession(s.handleEvents))

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type alwaysReady struct{}

func (alwaysReady) CheckReadiness(context.Context) error { return nil }

func writeError(w http.ResponseWriter, status int, msg string) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": msg})
}

// errBadRequest marks malformed or incomplete request bodies.
var errBadRequest = errors.New("bad request")

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %w", errBadRequest, err)
	}
	return nil
}

// statusFor maps error kinds to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, domain.ErrInvalidCoordinate),
		errors.Is(err, domain.ErrInvalidSubscription),
		errors.Is(err, resolver.ErrUnknownCity):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNotFound),
		errors.Is(err, domain.ErrNoMatch),
		errors.Is(err, geoip.ErrNotLocated):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrMissingCoordinates),
		errors.Is(err, resolver.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, domain.ErrGeocodeFailure),
		errors.Is(err, domain.ErrWeatherUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrDataUnavailable),
		errors.Is(err, session.ErrLimitReached):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	} else {
		s.logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeError(w, status, err.Error())
}
