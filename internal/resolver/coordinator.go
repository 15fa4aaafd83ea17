// Package resolver coordinates the location-resolution gestures: a dropdown
// city pick, a map click or geolocation fix, and a weather request. It owns the
// single map marker and emits events describing every state transition.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/couchcryptid/weather-alerts/internal/domain"
	"github.com/couchcryptid/weather-alerts/internal/hierarchy"
	"github.com/couchcryptid/weather-alerts/internal/observability"
	"github.com/couchcryptid/weather-alerts/internal/selection"
)

// ErrSuperseded is returned when a gesture's result was discarded because its
// context ended or, under NewestGestureWins, a newer gesture started.
var ErrSuperseded = errors.New("gesture superseded")

// WarnCoordinatesUnavailable is surfaced when a dropdown pick cannot be resolved.
const WarnCoordinatesUnavailable = "coordinates unavailable, weather limited"

// Source identifies where a point gesture came from.
type Source string

const (
	SourceMapClick    Source = "map_click"
	SourceGeolocation Source = "geolocation"
)

// ParseSource validates a point source name.
func ParseSource(s string) (Source, error) {
	switch Source(s) {
	case SourceMapClick, SourceGeolocation:
		return Source(s), nil
	default:
		return "", fmt.Errorf("unknown point source %q", s)
	}
}

// Policy decides how results of overlapping gestures are applied.
type Policy int

const (
	// LastResponseWins applies every response when it arrives, so a slow
	// response may overwrite a newer selection.
	LastResponseWins Policy = iota
	// NewestGestureWins discards responses of gestures superseded by a newer one.
	NewestGestureWins
)

// ParsePolicy maps "last-response" and "newest-gesture" to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "last-response":
		return LastResponseWins, nil
	case "newest-gesture":
		return NewestGestureWins, nil
	default:
		return 0, fmt.Errorf("unknown race policy %q", s)
	}
}

func (p Policy) String() string {
	if p == NewestGestureWins {
		return "newest-gesture"
	}
	return "last-response"
}

// WeatherReport is a weather result with its derived theme key.
type WeatherReport struct {
	domain.Weather
	Theme string `json:"theme"`
}

// Coordinator runs the resolution flows against one selection. All writes to
// the selection, the cascade and the map view happen under one lock, together
// with the events describing them.
type Coordinator struct {
	state   *selection.State
	cascade *selection.Cascade
	geo     domain.Geocoder
	weather domain.WeatherProvider

	sink    EventSink
	logger  *slog.Logger
	metrics *observability.Metrics
	policy  Policy

	gestures atomic.Uint64

	mu   sync.Mutex
	view mapModel
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithMetrics sets the metrics collectors.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithEventSink sets where events are delivered.
func WithEventSink(s EventSink) Option {
	return func(c *Coordinator) { c.sink = s }
}

// WithPolicy sets the race policy.
func WithPolicy(p Policy) Option {
	return func(c *Coordinator) { c.policy = p }
}

// WithDefaultView overrides the initial map view.
func WithDefaultView(v MapView) Option {
	return func(c *Coordinator) { c.view = newMapModel(v) }
}

// New creates a Coordinator over the given selection and cascade.
func New(state *selection.State, cascade *selection.Cascade, geo domain.Geocoder, weather domain.WeatherProvider, opts ...Option) *Coordinator {
	c := &Coordinator{
		state:   state,
		cascade: cascade,
		geo:     geo,
		weather: weather,
		sink:    discardSink{},
		logger:  slog.New(slog.DiscardHandler),
		metrics: observability.NewMetricsForTesting(),
		view:    newMapModel(DefaultView()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot returns a copy of the current selection.
func (c *Coordinator) Snapshot() selection.Snapshot {
	return c.state.Snapshot()
}

// View returns a copy of the current map view.
func (c *Coordinator) View() MapView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view.view.clone()
}

// Choice returns the current dropdown values.
func (c *Coordinator) Choice() selection.Choice {
	return c.cascade.Choice()
}

// Countries returns the country dropdown options.
func (c *Coordinator) Countries() []hierarchy.Entry {
	return c.cascade.Countries()
}

// ChooseCountry selects a country in the dropdowns and returns its states.
func (c *Coordinator) ChooseCountry(countryID string) []hierarchy.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	states := c.cascade.ChooseCountry(countryID)
	c.emit(Event{Kind: EventDropdownsChanged, Dropdowns: &Dropdowns{Choice: c.cascade.Choice(), States: states}})
	return states
}

// ChooseState selects a state in the dropdowns and returns its cities.
func (c *Coordinator) ChooseState(stateID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	cities := c.cascade.ChooseState(stateID)
	c.emit(Event{Kind: EventDropdownsChanged, Dropdowns: &Dropdowns{Choice: c.cascade.Choice(), Cities: cities}})
	return cities
}

// ChooseCity completes a dropdown pick and resolves it with SelectCity. A city
// not listed under the current country and state returns ErrUnknownCity.
func (c *Coordinator) ChooseCity(ctx context.Context, city string) error {
	c.mu.Lock()
	pick, ok := c.cascade.ChooseCity(city)
	if ok {
		c.emit(Event{Kind: EventDropdownsChanged, Dropdowns: &Dropdowns{Choice: c.cascade.Choice()}})
	}
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: city %q not listed under the selected state", ErrUnknownCity, city)
	}
	return c.SelectCity(ctx, pick.City, pick.State, pick.Country)
}

// ErrUnknownCity is returned by ChooseCity for a city outside the current dropdowns.
var ErrUnknownCity = errors.New("unknown city")

// SelectCity handles a dropdown pick. The names are stored immediately with
// coordinates cleared, then resolved with a forward lookup. On failure the
// names are kept, the marker is removed, the view is reset, and a warning is
// emitted; the returned error wraps domain.ErrGeocodeFailure.
func (c *Coordinator) SelectCity(ctx context.Context, city, state, country string) error {
	const kind = "dropdown"
	g := c.gestures.Add(1)

	if !c.apply(ctx, g, func() {
		c.state.SetFromDropdown(city, state, country)
		c.emitSelection(g)
	}) {
		return c.superseded(ctx, kind, g)
	}

	query := domain.FormatQuery(city, state, country)
	pt, err := c.geo.LookupByQuery(ctx, query)
	if err == nil {
		err = pt.Validate()
	}
	if err == nil {
		if !c.apply(ctx, g, func() {
			if err = c.state.SetCoordinates(pt.Lat, pt.Lon); err != nil {
				return
			}
			c.view.placeMarker(pt, FocusZoom)
			c.emit(Event{Kind: EventMarkerPlaced, Gesture: g, Point: &pt})
			c.emit(Event{Kind: EventMapCentered, Gesture: g, Point: &pt, Zoom: FocusZoom})
			c.emitSelection(g)
		}) {
			return c.superseded(ctx, kind, g)
		}
		if err == nil {
			c.metrics.Gestures.WithLabelValues(kind, "resolved").Inc()
			return nil
		}
	}

	if !c.apply(ctx, g, func() {
		c.state.ClearCoordinates()
		if c.view.removeMarker() {
			c.emit(Event{Kind: EventMarkerRemoved, Gesture: g})
		}
		c.view.reset()
		center := c.view.view.Center
		c.emit(Event{Kind: EventMapReset, Gesture: g, Point: &center, Zoom: c.view.view.Zoom})
		c.emitSelection(g)
		c.emit(Event{Kind: EventWarning, Gesture: g, Message: WarnCoordinatesUnavailable})
	}) {
		return c.superseded(ctx, kind, g)
	}
	c.logger.Warn("forward geocode failed", "query", query, "gesture", g, "error", err)
	c.metrics.Gestures.WithLabelValues(kind, "failed").Inc()
	return fmt.Errorf("%w: %q: %w", domain.ErrGeocodeFailure, query, err)
}

// SelectPoint handles a map click or a geolocation fix. Invalid coordinates
// are rejected before anything changes. Otherwise the single marker moves to
// the point at once and a reverse lookup runs. On success the selection takes
// the input coordinates together with the returned names, and the dropdowns
// follow when the place is in the hierarchy. On failure the selection is left
// as it was and the returned error wraps domain.ErrGeocodeFailure.
//
// Under LastResponseWins a late reverse result still writes the selection but
// leaves the marker wherever a newer gesture put it.
func (c *Coordinator) SelectPoint(ctx context.Context, lat, lon float64, src Source) error {
	kind := string(src)
	pt, err := domain.NewCoordinates(lat, lon)
	if err != nil {
		c.metrics.Gestures.WithLabelValues(kind, "invalid").Inc()
		return err
	}
	g := c.gestures.Add(1)

	zoom := 0
	if src == SourceGeolocation {
		zoom = FocusZoom
	}
	if !c.apply(ctx, g, func() {
		c.view.placeMarker(pt, zoom)
		c.emit(Event{Kind: EventMarkerPlaced, Gesture: g, Point: &pt})
		c.emit(Event{Kind: EventMapCentered, Gesture: g, Point: &pt, Zoom: c.view.view.Zoom})
	}) {
		return c.superseded(ctx, kind, g)
	}

	res, err := c.geo.LookupByCoordinates(ctx, lat, lon)
	if err != nil {
		if ctx.Err() != nil {
			return c.superseded(ctx, kind, g)
		}
		c.logger.Warn("reverse geocode failed", "lat", lat, "lon", lon, "gesture", g, "error", err)
		c.metrics.Gestures.WithLabelValues(kind, "failed").Inc()
		return fmt.Errorf("%w: reverse (%v, %v): %w", domain.ErrGeocodeFailure, lat, lon, err)
	}

	if !c.apply(ctx, g, func() {
		// The input point is stored, not the provider's echo, to keep click precision.
		if err = c.state.SetLocated(pt.Lat, pt.Lon, res.Place); err != nil {
			return
		}
		c.emitSelection(g)
		if c.cascade.Reselect([]string{res.CountryCode, res.Country}, res.State, res.City) {
			c.emit(Event{Kind: EventDropdownsChanged, Gesture: g, Dropdowns: &Dropdowns{Choice: c.cascade.Choice()}})
		}
	}) {
		return c.superseded(ctx, kind, g)
	}
	if err != nil {
		return err
	}
	c.metrics.Gestures.WithLabelValues(kind, "resolved").Inc()
	return nil
}

// RequestWeather fetches weather for the selected point. Without coordinates
// it returns domain.ErrMissingCoordinates and makes no call. The selection is
// never modified.
func (c *Coordinator) RequestWeather(ctx context.Context) (WeatherReport, error) {
	pt, ok := c.state.Coordinates()
	if !ok {
		c.metrics.WeatherRequests.WithLabelValues("missing_coordinates").Inc()
		return WeatherReport{}, domain.ErrMissingCoordinates
	}

	w, err := c.weather.FetchWeather(ctx, pt.Lat, pt.Lon)
	if err != nil {
		c.metrics.WeatherRequests.WithLabelValues("error").Inc()
		c.logger.Warn("fetch weather failed", "lat", pt.Lat, "lon", pt.Lon, "error", err)
		c.mu.Lock()
		c.emit(Event{Kind: EventWeatherFailed, Message: err.Error()})
		c.mu.Unlock()
		return WeatherReport{}, fmt.Errorf("%w: %w", domain.ErrWeatherUnavailable, err)
	}

	report := WeatherReport{Weather: w, Theme: ThemeFor(w.ConditionMain)}
	c.metrics.WeatherRequests.WithLabelValues("success").Inc()
	c.mu.Lock()
	c.emit(Event{Kind: EventWeatherReady, Weather: &report})
	c.mu.Unlock()
	return report, nil
}

// apply runs fn under the coordinator lock unless gesture g may no longer
// write. It reports whether fn ran.
func (c *Coordinator) apply(ctx context.Context, g uint64, fn func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	if c.policy == NewestGestureWins && c.gestures.Load() != g {
		return false
	}
	fn()
	return true
}

func (c *Coordinator) superseded(ctx context.Context, kind string, g uint64) error {
	c.metrics.Gestures.WithLabelValues(kind, "stale").Inc()
	c.logger.Debug("gesture result discarded", "kind", kind, "gesture", g, "policy", c.policy.String())
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrSuperseded, err)
	}
	return ErrSuperseded
}

func (c *Coordinator) emitSelection(g uint64) {
	snap := c.state.Snapshot()
	c.emit(Event{Kind: EventSelectionChanged, Gesture: g, Selection: &snap})
}

func (c *Coordinator) emit(e Event) {
	c.sink.Emit(e)
}
