// Package domain holds the value types and collaborator contracts shared by the
// location-resolution core and its adapters.
//
// # Location Sources
//
// A selected location can come from three independent input channels:
//
//	dropdown:     country → state → city picked from the loaded city list,
//	              resolved to coordinates by forward geocoding.
//	map click:    a point picked on the map, resolved to names by reverse geocoding.
//	geolocation:  a point reported by the client device (or approximated from
//	              the client IP), resolved exactly like a map click.
//
// The city list is a flat JSON array of {name, state_name, country_name}
// records. Records never carry coordinates; coordinates only ever come from
// the geocoding collaborator or from the user's point.
//
// # Coordinates
//
// Coordinates are WGS-84 decimal degrees. A coordinate pair is valid when both
// values are finite, latitude is within [-90, 90] and longitude is within
// [-180, 180]. Validation goes through the S2 LatLng type so that adapters and
// the core agree on one definition.
//
// # Error Kinds
//
// Failures are classified with errors.Is against the sentinels in errors.go.
// None of them is fatal to a session: each is converted to a non-blocking
// message at the gesture boundary.
package domain
