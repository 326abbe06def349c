package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/allez-events/server/internal/api/middleware"
	"github.com/allez-events/server/internal/api/problem"
	"github.com/allez-events/server/internal/domain/events"
	"github.com/allez-events/server/internal/images"
)

// ImageStore uploads request images and renders public URLs for stored
// keys. Implemented by images.Store.
type ImageStore interface {
	Put(ctx context.Context, upload images.Upload) (string, error)
	URL(key string) string
}

// ViewTracker records event views and serves each user's
// recently-viewed list. Implemented by cache.RecentViews.
type ViewTracker interface {
	Record(ctx context.Context, userID, eventID string) error
	Recent(ctx context.Context, userID string) ([]string, error)
}

type EventsHandler struct {
	Service *events.Service
	Images  ImageStore
	Views   ViewTracker
	Env     string
}

func NewEventsHandler(service *events.Service, imageStore ImageStore, views ViewTracker, env string) *EventsHandler {
	return &EventsHandler{Service: service, Images: imageStore, Views: views, Env: env}
}

// eventPayload adds the rendered image URL to the stored event.
type eventPayload struct {
	*events.Event
	ImageURL string `json:"imageUrl,omitempty"`
}

func (h *EventsHandler) render(event *events.Event) eventPayload {
	payload := eventPayload{Event: event}
	if event.ImageKey != "" {
		payload.ImageURL = h.Images.URL(event.ImageKey)
	}
	return payload
}

func (h *EventsHandler) renderList(items []events.Event) []eventPayload {
	payloads := make([]eventPayload, 0, len(items))
	for i := range items {
		payloads = append(payloads, h.render(&items[i]))
	}
	return payloads
}

func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.List(r.Context())
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, h.renderList(items))
}

func (h *EventsHandler) Get(w http.ResponseWriter, r *http.Request) {
	event, err := h.Service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, h.render(event))
}

func (h *EventsHandler) Create(w http.ResponseWriter, r *http.Request) {
	subject, ok := middleware.SubjectFromContext(r.Context())
	if !ok {
		problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Authentication required", nil, h.Env)
		return
	}

	var input events.EventInput
	header, err := decodeInput(r, "event", "eventImg", &input)
	if err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request body", err, h.Env)
		return
	}

	if header != nil {
		key, err := h.uploadImage(r, header)
		if err != nil {
			writeError(w, r, err, h.Env)
			return
		}
		input.ImageKey = key
	}

	event, err := h.Service.Create(r.Context(), subject.Key, input)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusCreated, h.render(event))
}

func (h *EventsHandler) Modify(w http.ResponseWriter, r *http.Request) {
	subject, ok := middleware.SubjectFromContext(r.Context())
	if !ok {
		problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Authentication required", nil, h.Env)
		return
	}

	var input events.EventInput
	header, err := decodeInput(r, "event", "eventImg", &input)
	if err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request body", err, h.Env)
		return
	}

	if header != nil {
		key, err := h.uploadImage(r, header)
		if err != nil {
			writeError(w, r, err, h.Env)
			return
		}
		input.ImageKey = key
	}

	event, err := h.Service.Modify(r.Context(), subject.Key, r.PathValue("id"), input)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, h.render(event))
}

func (h *EventsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	subject, ok := middleware.SubjectFromContext(r.Context())
	if !ok {
		problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Authentication required", nil, h.Env)
		return
	}

	if err := h.Service.Delete(r.Context(), subject.Key, r.PathValue("id")); err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type cohostRequest struct {
	CohostID string `json:"cohostId"`
	Action   string `json:"action"`
}

// Cohost adds or removes a cohost on a hosted event. Adding promotes an
// existing attendee.
func (h *EventsHandler) Cohost(w http.ResponseWriter, r *http.Request) {
	subject, ok := middleware.SubjectFromContext(r.Context())
	if !ok {
		problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Authentication required", nil, h.Env)
		return
	}

	var req cohostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request body", err, h.Env)
		return
	}
	if strings.TrimSpace(req.CohostID) == "" {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Validation failed", fmt.Errorf("cohostId is required"), h.Env)
		return
	}

	var (
		event *events.Event
		err   error
	)
	switch req.Action {
	case "add":
		event, err = h.Service.AddCohost(r.Context(), subject.Key, r.PathValue("id"), req.CohostID)
	case "remove":
		event, err = h.Service.RemoveCohost(r.Context(), subject.Key, r.PathValue("id"), req.CohostID)
	default:
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Validation failed", fmt.Errorf("action must be add or remove"), h.Env)
		return
	}
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, h.render(event))
}

type registerRequest struct {
	Action string `json:"action"`
}

// Register adds or removes the caller as an attendee.
func (h *EventsHandler) Register(w http.ResponseWriter, r *http.Request) {
	subject, ok := middleware.SubjectFromContext(r.Context())
	if !ok {
		problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Authentication required", nil, h.Env)
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request body", err, h.Env)
		return
	}

	var (
		event *events.Event
		err   error
	)
	switch req.Action {
	case "add":
		event, err = h.Service.AddAttendee(r.Context(), r.PathValue("id"), subject.Key)
	case "remove":
		event, err = h.Service.RemoveAttendee(r.Context(), r.PathValue("id"), subject.Key)
	default:
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Validation failed", fmt.Errorf("action must be add or remove"), h.Env)
		return
	}
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, h.render(event))
}

// Recent returns the caller's recently viewed events, most viewed
// first. Events deleted since the view was recorded are skipped.
func (h *EventsHandler) Recent(w http.ResponseWriter, r *http.Request) {
	subject, ok := middleware.SubjectFromContext(r.Context())
	if !ok {
		problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Authentication required", nil, h.Env)
		return
	}

	eventIDs, err := h.Views.Recent(r.Context(), subject.Key)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	if len(eventIDs) == 0 {
		writeJSON(w, http.StatusOK, []eventPayload{})
		return
	}

	items, err := h.Service.GetByIDs(r.Context(), eventIDs)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	// GetByIDs does not preserve order; re-sort to match the view ranking.
	byID := make(map[string]*events.Event, len(items))
	for i := range items {
		byID[items[i].ID] = &items[i]
	}
	payloads := make([]eventPayload, 0, len(items))
	for _, id := range eventIDs {
		if event, ok := byID[id]; ok {
			payloads = append(payloads, h.render(event))
		}
	}
	writeJSON(w, http.StatusOK, payloads)
}

// View records that the caller viewed the event and returns it.
func (h *EventsHandler) View(w http.ResponseWriter, r *http.Request) {
	subject, ok := middleware.SubjectFromContext(r.Context())
	if !ok {
		problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Authentication required", nil, h.Env)
		return
	}

	event, err := h.Service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	if err := h.Views.Record(r.Context(), subject.Key, event.ID); err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, h.render(event))
}

func (h *EventsHandler) uploadImage(r *http.Request, header *multipart.FileHeader) (string, error) {
	file, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("open uploaded file: %w", err)
	}
	defer file.Close()

	return h.Images.Put(r.Context(), images.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
	})
}
