// Package geocache decorates a domain.Geocoder with an in-process LRU and an
// optional shared tier (Redis). Only successful lookups are cached.
package geocache

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/couchcryptid/weather-alerts/internal/domain"
	"github.com/couchcryptid/weather-alerts/internal/observability"
	"github.com/golang/geo/s2"
)

// reverseCellLevel groups reverse lookups into S2 cells of roughly 10 m.
const reverseCellLevel = 20

// Shared is a cross-process byte cache.
type Shared interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Geocoder is a caching domain.Geocoder.
type Geocoder struct {
	inner   domain.Geocoder
	forward *lruCache[domain.Coordinates]
	reverse *lruCache[domain.Place]
	shared  Shared
	ttl     time.Duration
	logger  *slog.Logger
	metrics *observability.Metrics
}

// Option configures a Geocoder.
type Option func(*Geocoder)

// WithShared adds a shared tier whose entries expire after ttl.
func WithShared(s Shared, ttl time.Duration) Option {
	return func(g *Geocoder) {
		g.shared = s
		g.ttl = ttl
	}
}

// New wraps inner with an LRU of maxEntries per direction.
func New(inner domain.Geocoder, maxEntries int, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Geocoder {
	g := &Geocoder{
		inner:   inner,
		forward: newLRUCache[domain.Coordinates](maxEntries),
		reverse: newLRUCache[domain.Place](maxEntries),
		logger:  logger,
		metrics: metrics,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// LookupByQuery implements domain.ForwardGeocoder.
func (g *Geocoder) LookupByQuery(ctx context.Context, query string) (domain.Coordinates, error) {
	key := forwardKey(query)
	if pt, ok := g.forward.get(key); ok {
		g.metrics.GeocodeCache.WithLabelValues("forward", "hit").Inc()
		return pt, nil
	}
	var pt domain.Coordinates
	if g.loadShared(ctx, key, &pt) {
		g.metrics.GeocodeCache.WithLabelValues("forward", "shared_hit").Inc()
		g.forward.put(key, pt)
		return pt, nil
	}
	g.metrics.GeocodeCache.WithLabelValues("forward", "miss").Inc()

	pt, err := g.inner.LookupByQuery(ctx, query)
	if err != nil {
		return pt, err
	}
	g.forward.put(key, pt)
	g.storeShared(ctx, key, pt)
	return pt, nil
}

// LookupByCoordinates implements domain.ReverseGeocoder. Points in the same S2
// cell share a cached place; the returned coordinates are always the input.
func (g *Geocoder) LookupByCoordinates(ctx context.Context, lat, lon float64) (domain.ReverseResult, error) {
	key := reverseKey(lat, lon)
	echo := domain.Coordinates{Lat: lat, Lon: lon}
	if p, ok := g.reverse.get(key); ok {
		g.metrics.GeocodeCache.WithLabelValues("reverse", "hit").Inc()
		return domain.ReverseResult{Coordinates: echo, Place: p}, nil
	}
	var p domain.Place
	if g.loadShared(ctx, key, &p) {
		g.metrics.GeocodeCache.WithLabelValues("reverse", "shared_hit").Inc()
		g.reverse.put(key, p)
		return domain.ReverseResult{Coordinates: echo, Place: p}, nil
	}
	g.metrics.GeocodeCache.WithLabelValues("reverse", "miss").Inc()

	res, err := g.inner.LookupByCoordinates(ctx, lat, lon)
	if err != nil {
		return res, err
	}
	g.reverse.put(key, res.Place)
	g.storeShared(ctx, key, res.Place)
	res.Coordinates = echo
	return res, nil
}

func (g *Geocoder) loadShared(ctx context.Context, key string, out any) bool {
	if g.shared == nil {
		return false
	}
	data, ok, err := g.shared.Get(ctx, key)
	if err != nil {
		g.logger.Warn("shared geocode cache get failed", "key", key, "error", err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		g.logger.Warn("shared geocode cache entry unreadable", "key", key, "error", err)
		return false
	}
	return true
}

func (g *Geocoder) storeShared(ctx context.Context, key string, v any) {
	if g.shared == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := g.shared.Set(ctx, key, data, g.ttl); err != nil {
		g.logger.Warn("shared geocode cache set failed", "key", key, "error", err)
	}
}

func forwardKey(query string) string {
	return "fwd:" + strings.ToLower(strings.Join(strings.Fields(query), " "))
}

func reverseKey(lat, lon float64) string {
	cell := s2.CellIDFromLatLng(s2.LatLngFromDegrees(lat, lon)).Parent(reverseCellLevel)
	return "rev:" + cell.ToToken()
}

var _ domain.Geocoder = (*Geocoder)(nil)
