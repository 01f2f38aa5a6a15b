package readings

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRadius is returned when a clustering radius is not a positive number.
	ErrInvalidRadius = errors.New("clustering radius must be greater than zero")

	// ErrNotUserSubmitted is returned when the incorporate fast path receives a station reading.
	ErrNotUserSubmitted = errors.New("only user-submitted readings can be incorporated")

	// ErrAllSourcesFailed is reported when every fetch source failed in one refresh.
	ErrAllSourcesFailed = errors.New("all reading sources failed")

	// ErrCacheUnavailable wraps storage-medium failures of the snapshot cache.
	ErrCacheUnavailable = errors.New("snapshot cache unavailable")
)

// MalformedReadingError is returned when a raw record cannot become a Reading.
// The record is dropped; the batch continues.
type MalformedReadingError struct {
	Field  string
	Reason string
}

func (e *MalformedReadingError) Error() string {
	return fmt.Sprintf("malformed reading: %s %s", e.Field, e.Reason)
}

// FetchFailure is a per-source fetch error.
type FetchFailure struct {
	Source string
	Err    error
}

func (e *FetchFailure) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *FetchFailure) Unwrap() error { return e.Err }

// UnsatisfiableCriteriaError names a filter criterion whose supporting data is missing.
type UnsatisfiableCriteriaError struct {
	Criterion string
	Missing   string
}

func (e *UnsatisfiableCriteriaError) Error() string {
	return fmt.Sprintf("filter criterion %s requires %s", e.Criterion, e.Missing)
}
