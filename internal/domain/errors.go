package domain

import "errors"

var (
	// ErrDataUnavailable means the city list could not be obtained or parsed.
	ErrDataUnavailable = errors.New("location data unavailable")

	// ErrGeocodeFailure means a forward or reverse lookup found no match or failed in transit.
	ErrGeocodeFailure = errors.New("geocode failure")

	// ErrNoMatch accompanies ErrGeocodeFailure when the provider answered but found nothing.
	ErrNoMatch = errors.New("no match")

	// ErrInvalidCoordinate means a latitude/longitude was non-finite or out of range.
	ErrInvalidCoordinate = errors.New("invalid coordinate")

	// ErrMissingCoordinates means weather was requested without eligible coordinates.
	ErrMissingCoordinates = errors.New("missing coordinates")

	// ErrSubmissionFailure means the subscription could not be accepted.
	ErrSubmissionFailure = errors.New("subscription failed")

	// ErrInvalidSubscription means the subscription request failed validation.
	ErrInvalidSubscription = errors.New("invalid subscription")

	// ErrWeatherUnavailable means the weather collaborator returned an error.
	ErrWeatherUnavailable = errors.New("weather unavailable")
)
