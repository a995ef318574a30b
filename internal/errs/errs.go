// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package errs defines the error taxonomy shared by every pipeline stage.
// Callers classify failures with errors.Is against the sentinels below.
package errs

import (
	"errors"
	"fmt"
)

// Sentinel errors for the pipeline's failure classes.
var (
	// ErrInvalidInput is returned when a required field is missing or malformed.
	ErrInvalidInput = errors.New("invalid input")

	// ErrLocationNotFound is returned when the geocoder has no match.
	ErrLocationNotFound = errors.New("location not found")

	// ErrUpstreamUnavailable is returned when a third-party HTTP call fails
	// or answers with a non-success status.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrParseFailure is returned when an upstream response does not have
	// the expected structure.
	ErrParseFailure = errors.New("parse failure")

	// ErrTrialNotFound is returned when the registry has no study for an id.
	ErrTrialNotFound = errors.New("trial not found")

	// ErrProfileNotFound is returned when a user has no stored profile.
	ErrProfileNotFound = errors.New("profile not found")
)

// UpstreamError carries the diagnostics of a failed third-party call.
type UpstreamError struct {
	// Service names the upstream ("registry", "geocoder", "openai").
	Service string
	// StatusCode is the HTTP status, or 0 when the request never completed.
	StatusCode int
	// Body is the upstream response body, truncated.
	Body string
	// Err is the transport error, if any.
	Err error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s request failed: %v", e.Service, e.Err)
	case e.Body != "":
		return fmt.Sprintf("%s returned HTTP %d: %s", e.Service, e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("%s returned HTTP %d", e.Service, e.StatusCode)
	}
}

// Is matches ErrUpstreamUnavailable.
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstreamUnavailable
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// maxBody caps the body kept for diagnostics.
const maxBody = 2048

// Upstream builds an UpstreamError for a non-success response.
func Upstream(service string, status int, body []byte) *UpstreamError {
	b := string(body)
	if len(b) > maxBody {
		b = b[:maxBody] + "..."
	}
	return &UpstreamError{Service: service, StatusCode: status, Body: b}
}

// Transport builds an UpstreamError for a request that never got a response.
func Transport(service string, err error) *UpstreamError {
	return &UpstreamError{Service: service, Err: err}
}

// Invalid returns an error matching ErrInvalidInput for the named field.
func Invalid(field, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidInput, field, fmt.Sprintf(format, args...))
}

// Parse returns an error matching ErrParseFailure.
func Parse(what string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s", ErrParseFailure, what)
	}
	return fmt.Errorf("%w: %s: %v", ErrParseFailure, what, err)
}
