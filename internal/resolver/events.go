package resolver

import (
	"github.com/couchcryptid/weather-alerts/internal/domain"
	"github.com/couchcryptid/weather-alerts/internal/hierarchy"
	"github.com/couchcryptid/weather-alerts/internal/selection"
)

// EventKind names a notification emitted to the presentation layer.
type EventKind string

const (
	EventSelectionChanged EventKind = "selection_changed"
	EventMarkerPlaced     EventKind = "marker_placed"
	EventMarkerRemoved    EventKind = "marker_removed"
	EventMapCentered      EventKind = "map_centered"
	EventMapReset         EventKind = "map_reset"
	EventDropdownsChanged EventKind = "dropdowns_changed"
	EventWarning          EventKind = "warning"
	EventWeatherReady     EventKind = "weather_ready"
	EventWeatherFailed    EventKind = "weather_failed"
)

// Dropdowns carries the dropdown values and, when a level was just populated,
// its options.
type Dropdowns struct {
	selection.Choice
	States []hierarchy.Entry `json:"states,omitempty"`
	Cities []string          `json:"cities,omitempty"`
}

// Event is one state-transition notification. Only the fields relevant to
// Kind are set.
type Event struct {
	Kind      EventKind           `json:"kind"`
	Gesture   uint64              `json:"gesture,omitempty"`
	Selection *selection.Snapshot `json:"selection,omitempty"`
	Point     *domain.Coordinates `json:"point,omitempty"`
	Zoom      int                 `json:"zoom,omitempty"`
	Dropdowns *Dropdowns          `json:"dropdowns,omitempty"`
	Message   string              `json:"message,omitempty"`
	Weather   *WeatherReport      `json:"weather,omitempty"`
}

// EventSink receives coordinator events in the order their state changes were
// applied. Emit is called with the coordinator lock held and must not block.
type EventSink interface {
	Emit(Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(Event)

// Emit calls f(e).
func (f EventSinkFunc) Emit(e Event) { f(e) }

type discardSink struct{}

func (discardSink) Emit(Event) {}
