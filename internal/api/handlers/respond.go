// Package handlers holds the HTTP handlers for the events and users
// APIs plus the health endpoints. Handlers decode the request, call the
// domain service and render JSON; all error responses go out as RFC
// 7807 problem+json.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/allez-events/server/internal/api/problem"
	"github.com/allez-events/server/internal/domain/events"
	"github.com/allez-events/server/internal/domain/ids"
	"github.com/allez-events/server/internal/domain/users"
)

// maxMultipartMemory caps how much of a multipart body is buffered in
// memory before spilling to disk. The overall body size is capped by
// the request size middleware.
const maxMultipartMemory = 8 << 20

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// decodeInput reads the request payload into dst. Multipart requests
// carry the JSON document in the named form field with an optional file
// part; plain JSON bodies are decoded directly. The returned file
// header is nil when no file was uploaded.
func decodeInput(r *http.Request, jsonField, fileField string, dst any) (*multipart.FileHeader, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
			return nil, fmt.Errorf("decode body: %w", err)
		}
		return nil, nil
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return nil, fmt.Errorf("parse multipart form: %w", err)
	}

	raw := r.FormValue(jsonField)
	if raw == "" {
		return nil, fmt.Errorf("missing form field %q", jsonField)
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return nil, fmt.Errorf("decode form field %q: %w", jsonField, err)
	}

	_, header, err := r.FormFile(fileField)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read form file %q: %w", fileField, err)
	}
	return header, nil
}

// writeError maps domain errors onto problem responses.
func writeError(w http.ResponseWriter, r *http.Request, err error, env string) {
	if errors.Is(err, ids.ErrInvalidID) {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeInvalidID, "Invalid id", err, env)
		return
	}

	var eventFields events.ValidationError
	if errors.As(err, &eventFields) {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Validation failed", err, env,
			problem.WithErrors(fieldErrors(eventFields.Fields)))
		return
	}
	var userFields users.ValidationError
	if errors.As(err, &userFields) {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Validation failed", err, env,
			problem.WithErrors(fieldErrors(userFields.Fields)))
		return
	}

	switch {
	case errors.Is(err, events.ErrNotFound), errors.Is(err, users.ErrNotFound):
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Not found", err, env)
	case errors.Is(err, events.ErrForbidden):
		problem.Write(w, r, http.StatusForbidden, problem.TypeForbidden, "Forbidden", err, env)
	case errors.Is(err, events.ErrAlreadyRegistered):
		problem.Write(w, r, http.StatusConflict, problem.TypeAlreadyRegistered, "Already registered", err, env)
	case errors.Is(err, events.ErrConflict):
		problem.Write(w, r, http.StatusConflict, problem.TypeConflict, "Conflict", err, env)
	case errors.Is(err, users.ErrEmailTaken):
		problem.Write(w, r, http.StatusConflict, problem.TypeConflict, "Email already taken", err, env)
	default:
		var upstream *events.UpstreamError
		if errors.As(err, &upstream) {
			problem.Write(w, r, http.StatusBadGateway, problem.TypeUpstream, "Upstream provider error", err, env)
			return
		}
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", err, env)
	}
}

func fieldErrors(fields map[string]string) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for name, message := range fields {
		out[name] = message
	}
	return out
}
