package domain

import "errors"

var (
	// ErrInvalidInput is returned when a request is missing fields or carries invalid values.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUpstreamUnavailable is returned when the database cannot be reached or does not answer in time.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)
