package capi

import (
	"errors"
	"fmt"
)

// ErrMissingCredentials is returned when the pixel id or access token is
// not configured. No network call is attempted.
var ErrMissingCredentials = errors.New("pixel id or access token is not configured")

// ErrInvalidEvent is returned when an event lacks required fields. The
// event is dropped before any network call.
var ErrInvalidEvent = errors.New("event is missing required fields")

// APIError is an error status (>= 400) returned by the ingestion endpoint.
// Message carries the nested error message extracted from the response body.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("conversions api: HTTP %d: %s", e.StatusCode, e.Message)
}

// TransportError is a network-level failure reaching the endpoint. The
// affected events are dropped; there is no retry.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("conversions api: transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
