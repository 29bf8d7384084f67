package models

import "errors"

var (
	// ErrInvalidImage is returned for an empty, zero-sized or undecodable canvas
	ErrInvalidImage = errors.New("invalid image")

	// ErrModelUnavailable is returned when the classifier or detector cannot load or run
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrUpstreamLookupFailed is returned when geocoding or weather lookup fails
	ErrUpstreamLookupFailed = errors.New("upstream lookup failed")
)
