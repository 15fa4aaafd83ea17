package domain

import "context"

// ForwardGeocoder implements lookup-by-query.
type ForwardGeocoder interface {
	// LookupByQuery resolves a free-text query such as "Lagos, Lagos State, Nigeria"
	// to coordinates. A query with no match returns an error wrapping ErrGeocodeFailure.
	LookupByQuery(ctx context.Context, query string) (Coordinates, error)
}

// ReverseGeocoder implements lookup-by-coordinates.
type ReverseGeocoder interface {
	// LookupByCoordinates resolves a point to place names. A point with no result
	// returns an error wrapping ErrGeocodeFailure.
	LookupByCoordinates(ctx context.Context, lat, lon float64) (ReverseResult, error)
}

// Geocoder combines both lookup directions.
type Geocoder interface {
	ForwardGeocoder
	ReverseGeocoder
}

// WeatherProvider implements fetch-weather.
type WeatherProvider interface {
	FetchWeather(ctx context.Context, lat, lon float64) (Weather, error)
}
