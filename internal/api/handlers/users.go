package handlers

import (
	"context"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/allez-events/server/internal/api/middleware"
	"github.com/allez-events/server/internal/api/problem"
	"github.com/allez-events/server/internal/auth"
	"github.com/allez-events/server/internal/domain/events"
	"github.com/allez-events/server/internal/domain/users"
	"github.com/allez-events/server/internal/images"
)

type UsersHandler struct {
	Service *users.Service
	Images  ImageStore
	Events  ImageStore
	Env     string
}

// NewUsersHandler wires the profile service with the image stores for
// both buckets: profileImages serves profile pictures, eventImages
// renders the image URLs on the event lists.
func NewUsersHandler(service *users.Service, profileImages, eventImages ImageStore, env string) *UsersHandler {
	return &UsersHandler{Service: service, Images: profileImages, Events: eventImages, Env: env}
}

type userPayload struct {
	*users.User
	ImageURL string `json:"imageUrl,omitempty"`
}

func (h *UsersHandler) render(user *users.User) userPayload {
	payload := userPayload{User: user}
	if user.ImageKey != "" {
		payload.ImageURL = h.Images.URL(user.ImageKey)
	}
	return payload
}

func (h *UsersHandler) subject(w http.ResponseWriter, r *http.Request) (auth.Subject, bool) {
	subject, ok := middleware.SubjectFromContext(r.Context())
	if !ok {
		problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Authentication required", nil, h.Env)
	}
	return subject, ok
}

func (h *UsersHandler) Signup(w http.ResponseWriter, r *http.Request) {
	subject, ok := h.subject(w, r)
	if !ok {
		return
	}

	var input users.UserInput
	header, err := decodeInput(r, "user", "profileImg", &input)
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

	user, err := h.Service.Create(r.Context(), subject.Key, subject.Raw, input)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusCreated, h.render(user))
}

func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	subject, ok := h.subject(w, r)
	if !ok {
		return
	}

	user, err := h.Service.Get(r.Context(), subject.Key)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, h.render(user))
}

func (h *UsersHandler) Modify(w http.ResponseWriter, r *http.Request) {
	subject, ok := h.subject(w, r)
	if !ok {
		return
	}

	var input users.UserInput
	header, err := decodeInput(r, "user", "profileImg", &input)
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

	user, err := h.Service.Modify(r.Context(), subject.Key, input)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, h.render(user))
}

// Delete removes the caller's profile and every event they host.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	subject, ok := h.subject(w, r)
	if !ok {
		return
	}

	if err := h.Service.Delete(r.Context(), subject.Key); err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *UsersHandler) HostedEvents(w http.ResponseWriter, r *http.Request) {
	h.eventList(w, r, h.Service.HostedEvents)
}

func (h *UsersHandler) CohostedEvents(w http.ResponseWriter, r *http.Request) {
	h.eventList(w, r, h.Service.CohostedEvents)
}

func (h *UsersHandler) RegisteredEvents(w http.ResponseWriter, r *http.Request) {
	h.eventList(w, r, h.Service.AttendedEvents)
}

func (h *UsersHandler) eventList(w http.ResponseWriter, r *http.Request, load func(ctx context.Context, id string) ([]events.Event, error)) {
	subject, ok := h.subject(w, r)
	if !ok {
		return
	}

	items, err := load(r.Context(), subject.Key)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	payloads := make([]eventPayload, 0, len(items))
	for i := range items {
		payload := eventPayload{Event: &items[i]}
		if items[i].ImageKey != "" {
			payload.ImageURL = h.Events.URL(items[i].ImageKey)
		}
		payloads = append(payloads, payload)
	}
	writeJSON(w, http.StatusOK, payloads)
}

func (h *UsersHandler) uploadImage(r *http.Request, header *multipart.FileHeader) (string, error) {
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
