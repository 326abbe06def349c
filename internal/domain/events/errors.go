package events

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when an event lookup fails.
	ErrNotFound = errors.New("event not found")

	// ErrForbidden is returned when a caller who is not the host attempts
	// a host-only operation.
	ErrForbidden = errors.New("caller is not the event host")

	// ErrConflict is returned when an event with the same name already
	// exists in the same city.
	ErrConflict = errors.New("event already exists in this city")

	// ErrAlreadyRegistered is returned when a user registers for an event
	// they are already attending.
	ErrAlreadyRegistered = errors.New("already registered for this event")
)

// ValidationError carries per-field validation failures.
type ValidationError struct {
	Fields map[string]string
}

func (e ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, e.Fields[name]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// UpstreamError wraps a failure from a remote provider (payments, object
// storage) so handlers can map it to an upstream-error response.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
