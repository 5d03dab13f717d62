package weather

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedRecord is returned for a snapshot with too few fields.
	ErrMalformedRecord = errors.New("invalid clientraw format")

	// ErrRunInProgress is returned when a run is requested while another is in flight.
	ErrRunInProgress = errors.New("pipeline run already in progress")

	// ErrStatusTooLong is returned when the rendered status exceeds the configured limit.
	ErrStatusTooLong = errors.New("status exceeds maximum length")
)

// FetchError describes why a snapshot could not be retrieved.
type FetchError struct {
	Cause string
}

func (e *FetchError) Error() string {
	return e.Cause
}

// ParseError wraps ErrMalformedRecord with the observed token count.
type ParseError struct {
	Tokens int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: got %d fields, need %d", ErrMalformedRecord, e.Tokens, MinSnapshotTokens)
}

func (e *ParseError) Unwrap() error {
	return ErrMalformedRecord
}

// PublishError describes a failed publish. StatusCode is zero when no
// HTTP response was received.
type PublishError struct {
	StatusCode int
	Detail     string
}

func (e *PublishError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Detail)
	}
	return e.Detail
}
