package model

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by stores when the requested record does not exist.
var ErrNotFound = errors.New("not found")

// TransportError is a network or HTTP status failure.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport: %s returned %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("transport: %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// SchemaMismatchError means a document was fetched but lacks the expected
// root or table element.
type SchemaMismatchError struct {
	Family FormFamily
	Source string
	Reason string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch (%s) in %s: %s", e.Family, e.Source, e.Reason)
}

// NormalizationError rejects a single raw position.
type NormalizationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize %s %q: %s", e.Field, e.Value, e.Reason)
}

// EmptyResultError marks a filing that parsed but yielded no valid positions.
type EmptyResultError struct {
	AccessionID string
	Dropped     int
}

func (e *EmptyResultError) Error() string {
	return fmt.Sprintf("filing %s has no valid positions (%d dropped)", e.AccessionID, e.Dropped)
}

// IsTransportError reports whether err wraps a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsSchemaMismatch reports whether err wraps a SchemaMismatchError.
func IsSchemaMismatch(err error) bool {
	var se *SchemaMismatchError
	return errors.As(err, &se)
}

// IsNormalizationError reports whether err wraps a NormalizationError.
func IsNormalizationError(err error) bool {
	var ne *NormalizationError
	return errors.As(err, &ne)
}

// IsEmptyResult reports whether err wraps an EmptyResultError.
func IsEmptyResult(err error) bool {
	var ee *EmptyResultError
	return errors.As(err, &ee)
}
