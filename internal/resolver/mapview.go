package resolver

import "github.com/couchcryptid/weather-alerts/internal/domain"

// Zoom levels used by the map view.
const (
	DefaultZoom = 6
	FocusZoom   = 12
)

// DefaultCenter is the initial map center and the point the view returns to
// when a dropdown pick cannot be resolved.
var DefaultCenter = domain.Coordinates{Lat: 9.0820, Lon: 8.6753}

// MapView is the presentation-facing map state. At most one marker exists.
type MapView struct {
	Center domain.Coordinates  `json:"center"`
	Zoom   int                 `json:"zoom"`
	Marker *domain.Coordinates `json:"marker"`
}

// DefaultView is the map view before any gesture.
func DefaultView() MapView {
	return MapView{Center: DefaultCenter, Zoom: DefaultZoom}
}

func (v MapView) clone() MapView {
	if v.Marker != nil {
		m := *v.Marker
		v.Marker = &m
	}
	return v
}

// mapModel holds the single marker reference. Callers hold the coordinator lock.
type mapModel struct {
	initial MapView
	view    MapView
}

func newMapModel(initial MapView) mapModel {
	initial.Marker = nil
	return mapModel{initial: initial, view: initial}
}

// placeMarker moves the marker to pt and pans there. A zoom of 0 keeps the current zoom.
func (m *mapModel) placeMarker(pt domain.Coordinates, zoom int) {
	m.view.Marker = &pt
	m.view.Center = pt
	if zoom > 0 {
		m.view.Zoom = zoom
	}
}

// removeMarker reports whether a marker was present.
func (m *mapModel) removeMarker() bool {
	had := m.view.Marker != nil
	m.view.Marker = nil
	return had
}

func (m *mapModel) reset() {
	m.view.Center = m.initial.Center
	m.view.Zoom = m.initial.Zoom
}
