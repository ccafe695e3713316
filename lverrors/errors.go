// Package lverrors defines the error taxonomy shared by every core
// component, per spec §7. Each kind is a distinct sentinel-wrappable type
// so callers can dispatch with errors.As instead of string matching.
package lverrors

import "fmt"

// StorageError wraps an I/O or corruption failure from the content store.
// Fatal for the failing operation; may abort the owning session.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage: %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// SerializationError is returned by Codec.Encode on unencodable input.
type SerializationError struct {
	Err error
}

func (e *SerializationError) Error() string { return fmt.Sprintf("serialization: %v", e.Err) }
func (e *SerializationError) Unwrap() error { return e.Err }

// DeserializationError is returned by Codec.Decode on a malformed blob.
type DeserializationError struct {
	Err error
}

func (e *DeserializationError) Error() string { return fmt.Sprintf("deserialization: %v", e.Err) }
func (e *DeserializationError) Unwrap() error { return e.Err }

// RateLimitError indicates the Looker API returned a rate-limit response.
// Retryable; drives RateLimiter adaptation.
type RateLimitError struct {
	RetryAfter string
}

func (e *RateLimitError) Error() string { return "rate limited" }

// APIError is returned by LookerClient for non-2xx responses. Transient
// reflects whether the client should retry (429/5xx) or fail fast (4xx
// other than 429).
type APIError struct {
	StatusCode int
	Transient  bool
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("looker api: status %d transient=%v", e.StatusCode, e.Transient)
}

// ValidationError is a permanent, non-retryable item-level failure —
// routed to the DLQ during restoration.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: field %q: %v", e.Field, e.Err)
}
func (e *ValidationError) Unwrap() error { return e.Err }

// DependencyError is raised by the dependency graph on cycle detection, or
// surfaced by restoration when a content type's dependencies failed.
type DependencyError struct {
	Msg string
}

func (e *DependencyError) Error() string { return "dependency: " + e.Msg }

// IDMappingError is a permanent failure translating a foreign-key
// reference during restoration payload translation.
type IDMappingError struct {
	Field string
	Value string
}

func (e *IDMappingError) Error() string {
	return fmt.Sprintf("id mapping: no destination id for %s=%q", e.Field, e.Value)
}

// Cancelled indicates a graceful stop requested via context cancellation.
// No DLQ entries are produced from it.
var Cancelled = fmt.Errorf("lookervault: cancelled")
