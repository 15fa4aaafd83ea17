package http

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/weather-alerts/internal/domain"
	"github.com/couchcryptid/weather-alerts/internal/hierarchy"
	"github.com/couchcryptid/weather-alerts/internal/resolver"
	"github.com/couchcryptid/weather-alerts/internal/selection"
	"github.com/couchcryptid/weather-alerts/internal/session"
	"github.com/couchcryptid/weather-alerts/internal/subscription"
)

// warnPlaceUnavailable accompanies a point whose reverse lookup failed.
const warnPlaceUnavailable = "place name unavailable"

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *session.Session)

type sessionState struct {
	ID              string             `json:"id"`
	Selection       selection.Snapshot `json:"selection"`
	View            resolver.MapView   `json:"view"`
	Dropdowns       selection.Choice   `json:"dropdowns"`
	WeatherEligible bool               `json:"weather_eligible"`
	Warning         string             `json:"warning,omitempty"`
}

type createdSession struct {
	sessionState
	Countries []hierarchy.Entry `json:"countries"`
}

type idRequest struct {
	ID string `json:"id"`
}

type cityRequest struct {
	City string `json:"city"`
}

type pointGesture struct {
	pointRequest
	Source string `json:"source"`
}

type locateRequest struct {
	IP string `json:"ip"`
}

func stateOf(sess *session.Session) sessionState {
	snap := sess.Coordinator.Snapshot()
	_, eligible := snap.Coordinates()
	return sessionState{
		ID:              sess.ID,
		Selection:       snap,
		View:            sess.Coordinator.View(),
		Dropdowns:       sess.Coordinator.Choice(),
		WeatherEligible: eligible,
	}
}

func (s *Server) withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.deps.Sessions.Get(r.PathValue("id"))
		if err != nil {
			s.fail(w, r, err)
			return
		}
		h(w, r, sess)
	}
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.deps.Sessions.Create()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusCreated, createdSession{
		sessionState: stateOf(sess),
		Countries:    nonNil(sess.Coordinator.Countries()),
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, _ *http.Request, sess *session.Session) {
	sharedobs.WriteJSON(w, http.StatusOK, stateOf(sess))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.deps.Sessions.Delete(r.PathValue("id")) {
		s.fail(w, r, session.ErrNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleChooseCountry(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req idRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	states := sess.Coordinator.ChooseCountry(req.ID)
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{
		"dropdowns": sess.Coordinator.Choice(),
		"states":    nonNil(states),
	})
}

func (s *Server) handleChooseState(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req idRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	cities := sess.Coordinator.ChooseState(req.ID)
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{
		"dropdowns": sess.Coordinator.Choice(),
		"cities":    nonNil(cities),
	})
}

func (s *Server) handleChooseCity(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req cityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	err := sess.Coordinator.ChooseCity(r.Context(), req.City)
	s.gestureResult(w, r, sess, err, resolver.WarnCoordinatesUnavailable)
}

func (s *Server) handlePoint(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req pointGesture
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Source == "" {
		req.Source = string(resolver.SourceMapClick)
	}
	src, err := resolver.ParseSource(req.Source)
	if err != nil {
		s.fail(w, r, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}
	if req.Lat == nil || req.Lon == nil {
		s.fail(w, r, fmt.Errorf("%w: latitude and longitude are required", errBadRequest))
		return
	}
	err = sess.Coordinator.SelectPoint(r.Context(), *req.Lat, *req.Lon, src)
	s.gestureResult(w, r, sess, err, warnPlaceUnavailable)
}

func (s *Server) handleLocateIP(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if s.deps.Locator == nil {
		writeError(w, http.StatusNotImplemented, "ip location is not configured")
		return
	}
	var req locateRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	ip := clientIP(r)
	if req.IP != "" {
		ip = net.ParseIP(req.IP)
		if ip == nil {
			s.fail(w, r, fmt.Errorf("%w: invalid ip %q", errBadRequest, req.IP))
			return
		}
	}
	pt, err := s.deps.Locator.Locate(ip)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	err = sess.Coordinator.SelectPoint(r.Context(), pt.Lat, pt.Lon, resolver.SourceGeolocation)
	s.gestureResult(w, r, sess, err, warnPlaceUnavailable)
}

func (s *Server) handleSessionWeather(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	report, err := sess.Coordinator.RequestWeather(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, report)
}

func (s *Server) handleSessionSubscribe(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var in subscription.FormInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.failSubscription(w, r, err)
		return
	}
	s.subscribe(w, r, subscription.FormFromSelection(sess.Coordinator.Snapshot(), in))
}

// gestureResult answers a resolution gesture. A failed lookup is part of the
// flow, so the resulting state is returned with a warning instead of an error.
func (s *Server) gestureResult(w http.ResponseWriter, r *http.Request, sess *session.Session, err error, warning string) {
	if err != nil && (errors.Is(err, resolver.ErrSuperseded) || !errors.Is(err, domain.ErrGeocodeFailure)) {
		s.fail(w, r, err)
		return
	}
	st := stateOf(sess)
	if err != nil {
		st.Warning = warning
	}
	sharedobs.WriteJSON(w, http.StatusOK, st)
}

// clientIP prefers the first X-Forwarded-For hop over the socket peer.
func clientIP(r *http.Request) net.IP {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return net.ParseIP(host)
}
