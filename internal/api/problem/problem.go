// Package problem writes RFC 7807 application/problem+json error responses.
package problem

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
)

const contentType = "application/problem+json"

// Problem type URIs. Clients branch on these instead of parsing messages.
const (
	TypeValidation        = "https://allez.events/problems/validation-error"
	TypeInvalidID         = "https://allez.events/problems/invalid-id"
	TypeNotFound          = "https://allez.events/problems/not-found"
	TypeForbidden         = "https://allez.events/problems/forbidden"
	TypeUnauthorized      = "https://allez.events/problems/unauthorized"
	TypeConflict          = "https://allez.events/problems/conflict"
	TypeAlreadyRegistered = "https://allez.events/problems/already-registered"
	TypeUpstream          = "https://allez.events/problems/upstream-error"
	TypeServerError       = "https://allez.events/problems/server-error"
)

type Details struct {
	Type     string                 `json:"type"`
	Title    string                 `json:"title"`
	Status   int                    `json:"status"`
	Detail   string                 `json:"detail,omitempty"`
	Instance string                 `json:"instance,omitempty"`
	Errors   map[string]interface{} `json:"errors,omitempty"`
}

type Option func(*Details)

func WithDetail(detail string) Option {
	return func(p *Details) {
		p.Detail = detail
	}
}

func WithErrors(errs map[string]interface{}) Option {
	return func(p *Details) {
		p.Errors = errs
	}
}

// Write renders a problem response. Outside development the raw error text is
// replaced with the generic status text so internals do not leak to clients.
func Write(w http.ResponseWriter, r *http.Request, status int, typ, title string, err error, env string, opts ...Option) {
	details := Details{
		Type:   typ,
		Title:  title,
		Status: status,
	}

	for _, opt := range opts {
		opt(&details)
	}

	if details.Detail == "" && err != nil {
		if env == "development" || env == "test" {
			details.Detail = err.Error()
		} else {
			details.Detail = http.StatusText(status)
		}
	}

	if details.Instance == "" && r != nil {
		details.Instance = r.URL.Path
	}

	if err != nil && r != nil {
		logger := zerolog.Ctx(r.Context())
		event := logger.Warn()
		if status >= 500 {
			event = logger.Error()
		}
		event.
			Err(err).
			Int("status", status).
			Str("type", typ).
			Str("path", r.URL.Path).
			Str("method", r.Method).
			Msg(title)
	}

	writeDetails(w, details)
}

func writeDetails(w http.ResponseWriter, details Details) {
	payload, err := json.Marshal(details)
	if err != nil {
		fallback := fmt.Sprintf("{\"type\":\"about:blank\",\"title\":\"%s\",\"status\":500}", http.StatusText(http.StatusInternalServerError))
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(fallback))
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(details.Status)
	_, _ = w.Write(payload)
}
