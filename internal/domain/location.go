package domain

import (
	"fmt"
	"math"
	"strings"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// CityRecord is one entry of the flat city list.
type CityRecord struct {
	Name        string `json:"name"`
	StateName   string `json:"state_name"`
	CountryName string `json:"country_name"`
}

// Coordinates represents a WGS-84 latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// NewCoordinates validates lat/lon and returns the pair.
func NewCoordinates(lat, lon float64) (Coordinates, error) {
	c := Coordinates{Lat: lat, Lon: lon}
	if err := c.Validate(); err != nil {
		return Coordinates{}, err
	}
	return c, nil
}

// Validate reports ErrInvalidCoordinate for non-finite or out-of-range values.
func (c Coordinates) Validate() error {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lon, 0) {
		return fmt.Errorf("%w: non-finite value (lat=%v, lon=%v)", ErrInvalidCoordinate, c.Lat, c.Lon)
	}
	if !c.LatLng().IsValid() {
		return fmt.Errorf("%w: out of range (lat=%v, lon=%v)", ErrInvalidCoordinate, c.Lat, c.Lon)
	}
	return nil
}

// LatLng converts the pair to an S2 LatLng.
func (c Coordinates) LatLng() s2.LatLng {
	return s2.LatLngFromDegrees(c.Lat, c.Lon)
}

// DistanceMeters returns the great-circle distance to other on a spherical Earth.
func (c Coordinates) DistanceMeters(other Coordinates) float64 {
	const earthRadiusMeters = 6371008.8
	var angle s1.Angle = c.LatLng().Distance(other.LatLng())
	return angle.Radians() * earthRadiusMeters
}

// Place holds the human-readable names attached to a location.
type Place struct {
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	Country     string `json:"country,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
}

// ReverseResult is the output of lookup-by-coordinates. Coordinates echo the
// request values, never a provider-rounded point.
type ReverseResult struct {
	Coordinates
	Place
}

// FormatQuery builds the free-text forward geocoding query "city, state, country",
// skipping empty parts.
func FormatQuery(city, state, country string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{city, state, country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
