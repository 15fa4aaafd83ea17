package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/weather-alerts/internal/domain"
	"github.com/couchcryptid/weather-alerts/internal/subscription"
)

type queryRequest struct {
	Query string `json:"query"`
}

type pointRequest struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

func (p pointRequest) coordinates() (domain.Coordinates, error) {
	if p.Lat == nil || p.Lon == nil {
		return domain.Coordinates{}, fmt.Errorf("%w: latitude and longitude are required", errBadRequest)
	}
	return domain.NewCoordinates(*p.Lat, *p.Lon)
}

type reverseResponse struct {
	Lat         float64        `json:"lat"`
	Lon         float64        `json:"lon"`
	City        string         `json:"city"`
	Country     string         `json:"country"`
	CountryCode string         `json:"country_code"`
	Address     reverseAddress `json:"address"`
}

type reverseAddress struct {
	State string `json:"state"`
}

func (s *Server) handleLegacyHealth(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		writeError(w, http.StatusBadRequest, "Query is required")
		return
	}
	pt, err := s.deps.Geocoder.LookupByQuery(r.Context(), query)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, pt)
}

func (s *Server) handleReverseGeocode(w http.ResponseWriter, r *http.Request) {
	var req pointRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	pt, err := req.coordinates()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.deps.Geocoder.LookupByCoordinates(r.Context(), pt.Lat, pt.Lon)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, reverseResponse{
		Lat:         pt.Lat,
		Lon:         pt.Lon,
		City:        res.City,
		Country:     res.Country,
		CountryCode: res.CountryCode,
		Address:     reverseAddress{State: res.State},
	})
}

func (s *Server) handleWeatherByCoords(w http.ResponseWriter, r *http.Request) {
	var req pointRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	pt, err := req.coordinates()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	weather, err := s.deps.Weather.FetchWeather(r.Context(), pt.Lat, pt.Lon)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, weather)
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req subscription.Request
	if err := decodeJSON(w, r, &req); err != nil {
		s.failSubscription(w, r, err)
		return
	}
	s.subscribe(w, r, req)
}

func (s *Server) subscribe(w http.ResponseWriter, r *http.Request, req subscription.Request) {
	res, err := s.deps.Subscriptions.Subscribe(r.Context(), req)
	if err != nil {
		s.failSubscription(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, res)
}

func (s *Server) failSubscription(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if errors.Is(err, domain.ErrSubmissionFailure) {
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("subscription failed", "status", status, "error", err)
	}
	sharedobs.WriteJSON(w, status, map[string]any{"ok": false, "error": err.Error()})
}

func (s *Server) handleCountries(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, nonNil(s.deps.Hierarchy.ListCountries()))
}

func (s *Server) handleStates(w http.ResponseWriter, r *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, nonNil(s.deps.Hierarchy.ListStates(r.PathValue("country"))))
}

func (s *Server) handleCities(w http.ResponseWriter, r *http.Request) {
	cities := s.deps.Hierarchy.ListCities(r.PathValue("country"), r.PathValue("state"))
	sharedobs.WriteJSON(w, http.StatusOK, nonNil(cities))
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
