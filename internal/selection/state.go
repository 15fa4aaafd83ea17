// Package selection owns the currently selected location and the cascading
// dropdown choices that feed it.
package selection

import (
	"sync"

	"github.com/couchcryptid/weather-alerts/internal/domain"
)

// Snapshot is a point-in-time copy of the selection. Nil fields are unset.
// Latitude and Longitude are either both nil or both set.
type Snapshot struct {
	Latitude  *float64 `json:"lat"`
	Longitude *float64 `json:"lon"`
	City      *string  `json:"city"`
	State     *string  `json:"state"`
	Country   *string  `json:"country"`
}

// Coordinates returns the selected point, if both coordinates are set.
func (s Snapshot) Coordinates() (domain.Coordinates, bool) {
	if s.Latitude == nil || s.Longitude == nil {
		return domain.Coordinates{}, false
	}
	return domain.Coordinates{Lat: *s.Latitude, Lon: *s.Longitude}, true
}

// State is the single mutable selection record of a session. Every mutator
// writes its field group under one lock, so readers never observe a partial write.
type State struct {
	mu      sync.RWMutex
	coords  *domain.Coordinates
	city    *string
	state   *string
	country *string
}

// New returns an empty selection.
func New() *State {
	return &State{}
}

// SetFromDropdown sets city, state and country together and clears the
// coordinates until resolution completes.
func (s *State) SetFromDropdown(city, state, country string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.city = &city
	s.state = &state
	s.country = &country
	s.coords = nil
}

// SetCoordinates sets both coordinates atomically. Invalid values are rejected
// with domain.ErrInvalidCoordinate and the prior state is kept.
func (s *State) SetCoordinates(lat, lon float64) error {
	c, err := domain.NewCoordinates(lat, lon)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coords = &c
	return nil
}

// SetLocated records a reverse-geocoded point: coordinates and the returned
// names in one write. Empty names are stored as unset.
func (s *State) SetLocated(lat, lon float64, place domain.Place) error {
	c, err := domain.NewCoordinates(lat, lon)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coords = &c
	s.city = optional(place.City)
	s.state = optional(place.State)
	s.country = optional(place.Country)
	return nil
}

// ClearCoordinates unsets both coordinates and keeps the names.
func (s *State) ClearCoordinates() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coords = nil
}

// IsWeatherEligible reports whether both coordinates are set.
func (s *State) IsWeatherEligible() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.coords != nil
}

// Coordinates returns the selected point when eligible.
func (s *State) Coordinates() (domain.Coordinates, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.coords == nil {
		return domain.Coordinates{}, false
	}
	return *s.coords, true
}

// Snapshot copies the current selection.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var snap Snapshot
	if s.coords != nil {
		lat, lon := s.coords.Lat, s.coords.Lon
		snap.Latitude = &lat
		snap.Longitude = &lon
	}
	snap.City = copyString(s.city)
	snap.State = copyString(s.state)
	snap.Country = copyString(s.country)
	return snap
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func copyString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
