// Package ids mints and validates the ULID identifiers used for events.
package ids

import (
	"crypto/rand"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	ulidRegex = regexp.MustCompile(`(?i)^[0-9A-HJKMNP-TV-Z]{26}$`)

	ErrInvalidID = errors.New("invalid event id")
)

// New generates a new ULID string.
func New() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// IsValid reports whether value is a well-formed ULID.
func IsValid(value string) bool {
	return ulidRegex.MatchString(strings.TrimSpace(value))
}

// Validate returns ErrInvalidID for malformed identifiers. Handlers call this
// before any database access so format errors are distinct from not-found.
func Validate(value string) error {
	if !IsValid(value) {
		return ErrInvalidID
	}
	return nil
}
