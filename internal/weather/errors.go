package weather

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfiguration is returned when the provider API key is missing.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrMissingCoordinates means a download was needed for a location without coordinates.
	ErrMissingCoordinates = errors.New("location has no coordinates")
	ErrLocationNotFound   = errors.New("location not found")
	// ErrGPSLocationNotDeletable is returned when deleting the device location.
	ErrGPSLocationNotDeletable = errors.New("gps location cannot be deleted")

	ErrTransport = errors.New("transport failure")
	// ErrThrottled means the local rate limiter could not grant a request
	// before the caller's deadline. Nothing was sent.
	ErrThrottled = errors.New("request throttled")
	ErrCancelled = errors.New("request cancelled")
	ErrDecode    = errors.New("malformed payload")
	// ErrNotCached means a slot has never held a payload.
	ErrNotCached = errors.New("no cached payload")

	// ErrInProgress reports that the same URL is already being downloaded. It
	// is an outcome rather than a failure: retry once the download completes.
	ErrInProgress = errors.New("download already in progress")
)

// ContentTypeError is returned when a response has a non-2xx status or a
// media type other than the expected one.
type ContentTypeError struct {
	URL        string
	StatusCode int
	Got        string
	Want       string
}

func (e *ContentTypeError) Error() string {
	if e.StatusCode < 200 || e.StatusCode > 299 {
		return fmt.Sprintf("unexpected response from %s: status %d, content type %q (want %q)", e.URL, e.StatusCode, e.Got, e.Want)
	}
	return fmt.Sprintf("unexpected content type from %s: got %q, want %q", e.URL, e.Got, e.Want)
}

// TransportError wraps a network, DNS or TLS failure.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() []error { return []error{ErrTransport, e.Err} }

// CancelledError wraps the context error of an aborted fetch.
type CancelledError struct {
	URL string
	Err error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("fetch %s cancelled: %v", e.URL, e.Err)
}

func (e *CancelledError) Unwrap() []error { return []error{ErrCancelled, e.Err} }

// DecodeError describes a payload that could not be normalized.
type DecodeError struct {
	Kind   DataKind
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode %s payload: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("decode %s payload: %s", e.Kind, e.Reason)
}

func (e *DecodeError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrDecode}
	}
	return []error{ErrDecode, e.Err}
}

// RequestError carries the location and kind a Service call failed for.
type RequestError struct {
	LocationID string
	Kind       DataKind
	Err        error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s data for location %s: %v", e.Kind, e.LocationID, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }
