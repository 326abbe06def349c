package auth

import (
	"errors"
	"strings"
)

// Subject is a parsed identity-provider subject claim. The provider issues
// subjects of the form "<provider>|<key>", e.g. "auth0|6441a5f70c42b5e9a2d4".
type Subject struct {
	// Raw is the full claim as issued.
	Raw string
	// Provider is the prefix before the delimiter ("auth0", "google-oauth2").
	Provider string
	// Key is the portion after the delimiter; it is the user storage key.
	Key string
}

// ErrInvalidSubject is returned for subject claims without the
// provider|key shape.
var ErrInvalidSubject = errors.New("invalid identity subject")

// ParseSubject splits a subject claim on the provider delimiter.
func ParseSubject(raw string) (Subject, error) {
	raw = strings.TrimSpace(raw)
	provider, key, found := strings.Cut(raw, "|")
	if !found || provider == "" || key == "" {
		return Subject{}, ErrInvalidSubject
	}
	return Subject{Raw: raw, Provider: provider, Key: key}, nil
}
