package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrLocationNotFound means the city could not be resolved; dependent
	// fetches must not run.
	ErrLocationNotFound = errors.New("location not found")

	// ErrMetricUnavailable means a derived value is undefined for the input.
	ErrMetricUnavailable = errors.New("metric unavailable")

	// ErrInvalidInput marks user input rejected before any external call.
	ErrInvalidInput = errors.New("invalid input")
)

// FetchError is a transport failure or non-2xx response from a provider
type FetchError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: fetch failed with status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: fetch failed: %v", e.Provider, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// MalformedResponseError is a provider response missing an expected field
type MalformedResponseError struct {
	Provider string
	Field    string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s: malformed response: missing %s", e.Provider, e.Field)
}

// Malformed is shorthand for building a MalformedResponseError
func Malformed(provider, field string) error {
	return &MalformedResponseError{Provider: provider, Field: field}
}

// ErrorKind classifies an error for API responses and logs
func ErrorKind(err error) string {
	var fetchErr *FetchError
	var malformedErr *MalformedResponseError

	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrLocationNotFound):
		return "location_not_found"
	case errors.Is(err, ErrMetricUnavailable):
		return "metric_unavailable"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.As(err, &malformedErr):
		return "malformed_response"
	case errors.As(err, &fetchErr):
		return "fetch_failed"
	default:
		return "internal"
	}
}

// ErrorProvider returns the provider attached to err, if any
func ErrorProvider(err error) string {
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Provider
	}
	var malformedErr *MalformedResponseError
	if errors.As(err, &malformedErr) {
		return malformedErr.Provider
	}
	return ""
}
