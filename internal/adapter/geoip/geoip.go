// Package geoip resolves client IP addresses to approximate coordinates using
// a MaxMind GeoLite2/GeoIP2 City database.
package geoip

import (
	"errors"
	"fmt"
	"net"

	"github.com/couchcryptid/weather-alerts/internal/domain"
	"github.com/oschwald/geoip2-golang"
)

// ErrNotLocated is returned for addresses the database has no position for
// (private ranges, unassigned blocks).
var ErrNotLocated = errors.New("ip address not located")

type cityReader interface {
	City(ip net.IP) (*geoip2.City, error)
	Close() error
}

// Locator looks up IP addresses.
type Locator struct {
	db cityReader
}

// Open loads the database at path.
func Open(path string) (*Locator, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database %s: %w", path, err)
	}
	return &Locator{db: db}, nil
}

// Locate returns the position recorded for ip.
func (l *Locator) Locate(ip net.IP) (domain.Coordinates, error) {
	if ip == nil {
		return domain.Coordinates{}, fmt.Errorf("%w: no address", ErrNotLocated)
	}
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() {
		return domain.Coordinates{}, fmt.Errorf("%w: %s is not routable", ErrNotLocated, ip)
	}
	rec, err := l.db.City(ip)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("geoip lookup %s: %w", ip, err)
	}
	return fromRecord(ip, rec)
}

// Close releases the database.
func (l *Locator) Close() error {
	return l.db.Close()
}

func fromRecord(ip net.IP, rec *geoip2.City) (domain.Coordinates, error) {
	loc := rec.Location
	if loc.AccuracyRadius == 0 && loc.Latitude == 0 && loc.Longitude == 0 {
		return domain.Coordinates{}, fmt.Errorf("%w: %s", ErrNotLocated, ip)
	}
	return domain.NewCoordinates(loc.Latitude, loc.Longitude)
}
