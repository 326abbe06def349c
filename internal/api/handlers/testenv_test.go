package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"slices"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/allez-events/server/internal/api/middleware"
	"github.com/allez-events/server/internal/auth"
	"github.com/allez-events/server/internal/domain/events"
	"github.com/allez-events/server/internal/domain/users"
	"github.com/allez-events/server/internal/images"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// memEventRepo is an in-memory events.Repository for handler tests.
type memEventRepo struct {
	mu     sync.Mutex
	events map[string]*events.Event
}

func newMemEventRepo() *memEventRepo {
	return &memEventRepo{events: make(map[string]*events.Event)}
}

func (r *memEventRepo) Insert(ctx context.Context, event *events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *event
	r.events[event.ID] = &clone
	return nil
}

func (r *memEventRepo) GetByID(ctx context.Context, id string) (*events.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[id]
	if !ok {
		return nil, events.ErrNotFound
	}
	clone := *event
	return &clone, nil
}

func (r *memEventRepo) GetByIDs(ctx context.Context, ids []string) ([]events.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Event, 0, len(ids))
	for _, id := range ids {
		if event, ok := r.events[id]; ok {
			out = append(out, *event)
		}
	}
	return out, nil
}

func (r *memEventRepo) List(ctx context.Context) ([]events.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Event, 0, len(r.events))
	for _, event := range r.events {
		out = append(out, *event)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memEventRepo) ListByHost(ctx context.Context, hostID string) ([]events.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []events.Event{}
	for _, event := range r.events {
		if event.HostID == hostID {
			out = append(out, *event)
		}
	}
	return out, nil
}

func (r *memEventRepo) ExistsByNameCity(ctx context.Context, name, city string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, event := range r.events {
		if strings.EqualFold(event.Name, name) && strings.EqualFold(event.Venue.City, city) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memEventRepo) Update(ctx context.Context, event *events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[event.ID]; !ok {
		return events.ErrNotFound
	}
	clone := *event
	r.events[event.ID] = &clone
	return nil
}

func (r *memEventRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[id]; !ok {
		return events.ErrNotFound
	}
	delete(r.events, id)
	return nil
}

func (r *memEventRepo) DeleteByHost(ctx context.Context, hostID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, event := range r.events {
		if event.HostID == hostID {
			delete(r.events, id)
		}
	}
	return nil
}

func (r *memEventRepo) AddCohost(ctx context.Context, eventID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[eventID]
	if !ok {
		return events.ErrNotFound
	}
	event.AttendeeIDs = slices.DeleteFunc(slices.Clone(event.AttendeeIDs), func(id string) bool { return id == userID })
	if !slices.Contains(event.CohostIDs, userID) {
		event.CohostIDs = append(slices.Clone(event.CohostIDs), userID)
	}
	return nil
}

func (r *memEventRepo) RemoveCohost(ctx context.Context, eventID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[eventID]
	if !ok {
		return events.ErrNotFound
	}
	event.CohostIDs = slices.DeleteFunc(slices.Clone(event.CohostIDs), func(id string) bool { return id == userID })
	return nil
}

func (r *memEventRepo) AddAttendee(ctx context.Context, eventID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[eventID]
	if !ok {
		return events.ErrNotFound
	}
	if slices.Contains(event.AttendeeIDs, userID) || slices.Contains(event.CohostIDs, userID) {
		return events.ErrAlreadyRegistered
	}
	event.AttendeeIDs = append(slices.Clone(event.AttendeeIDs), userID)
	return nil
}

func (r *memEventRepo) RemoveAttendee(ctx context.Context, eventID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[eventID]
	if !ok {
		return events.ErrNotFound
	}
	event.AttendeeIDs = slices.DeleteFunc(slices.Clone(event.AttendeeIDs), func(id string) bool { return id == userID })
	return nil
}

// memUserRepo is an in-memory users.Repository.
type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*users.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*users.User)}
}

func (r *memUserRepo) Insert(ctx context.Context, user *users.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return users.ErrEmailTaken
		}
	}
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *memUserRepo) GetByID(ctx context.Context, id string) (*users.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	clone := *user
	return &clone, nil
}

func (r *memUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (r *memUserRepo) Update(ctx context.Context, user *users.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.users[user.ID]
	if !ok {
		return users.ErrNotFound
	}
	for _, other := range r.users {
		if other.ID != user.ID && other.Email == user.Email {
			return users.ErrEmailTaken
		}
	}
	clone := *user
	clone.HostedEventIDs = stored.HostedEventIDs
	clone.CohostedEventIDs = stored.CohostedEventIDs
	clone.AttendedEventIDs = stored.AttendedEventIDs
	r.users[user.ID] = &clone
	return nil
}

func (r *memUserRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return users.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *memUserRepo) mutateList(id string, mutate func(user *users.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return users.ErrNotFound
	}
	mutate(user)
	return nil
}

func addID(list []string, id string) []string {
	if slices.Contains(list, id) {
		return list
	}
	return append(slices.Clone(list), id)
}

func dropID(list []string, id string) []string {
	return slices.DeleteFunc(slices.Clone(list), func(v string) bool { return v == id })
}

func (r *memUserRepo) AddHostedEvent(ctx context.Context, userID, eventID string) error {
	return r.mutateList(userID, func(u *users.User) { u.HostedEventIDs = addID(u.HostedEventIDs, eventID) })
}

func (r *memUserRepo) RemoveHostedEvent(ctx context.Context, userID, eventID string) error {
	return r.mutateList(userID, func(u *users.User) { u.HostedEventIDs = dropID(u.HostedEventIDs, eventID) })
}

func (r *memUserRepo) AddCohostedEvent(ctx context.Context, userID, eventID string) error {
	return r.mutateList(userID, func(u *users.User) { u.CohostedEventIDs = addID(u.CohostedEventIDs, eventID) })
}

func (r *memUserRepo) RemoveCohostedEvent(ctx context.Context, userID, eventID string) error {
	return r.mutateList(userID, func(u *users.User) { u.CohostedEventIDs = dropID(u.CohostedEventIDs, eventID) })
}

func (r *memUserRepo) AddAttendedEvent(ctx context.Context, userID, eventID string) error {
	return r.mutateList(userID, func(u *users.User) { u.AttendedEventIDs = addID(u.AttendedEventIDs, eventID) })
}

func (r *memUserRepo) RemoveAttendedEvent(ctx context.Context, userID, eventID string) error {
	return r.mutateList(userID, func(u *users.User) { u.AttendedEventIDs = dropID(u.AttendedEventIDs, eventID) })
}

// userDirectory adapts memUserRepo to the event service's directory
// interface while tolerating users that never signed up.
type userDirectory struct {
	repo *memUserRepo
}

func (d userDirectory) relaxed(err error) error {
	if errors.Is(err, users.ErrNotFound) {
		return nil
	}
	return err
}

func (d userDirectory) AddHostedEvent(ctx context.Context, userID, eventID string) error {
	return d.relaxed(d.repo.AddHostedEvent(ctx, userID, eventID))
}

func (d userDirectory) RemoveHostedEvent(ctx context.Context, userID, eventID string) error {
	return d.relaxed(d.repo.RemoveHostedEvent(ctx, userID, eventID))
}

func (d userDirectory) AddCohostedEvent(ctx context.Context, userID, eventID string) error {
	return d.relaxed(d.repo.AddCohostedEvent(ctx, userID, eventID))
}

func (d userDirectory) RemoveCohostedEvent(ctx context.Context, userID, eventID string) error {
	return d.relaxed(d.repo.RemoveCohostedEvent(ctx, userID, eventID))
}

func (d userDirectory) AddAttendedEvent(ctx context.Context, userID, eventID string) error {
	return d.relaxed(d.repo.AddAttendedEvent(ctx, userID, eventID))
}

func (d userDirectory) RemoveAttendedEvent(ctx context.Context, userID, eventID string) error {
	return d.relaxed(d.repo.RemoveAttendedEvent(ctx, userID, eventID))
}

// fakePayments satisfies events.PaymentMirror without talking to
// the provider.
type fakePayments struct {
	mu       sync.Mutex
	products int
}

func (p *fakePayments) CreateProduct(ctx context.Context, event *events.Event) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.products++
	return fmt.Sprintf("prod_%d", p.products), nil
}

func (p *fakePayments) CreatePrice(ctx context.Context, productID string, dollars float64) (string, error) {
	return "price_" + productID, nil
}

func (p *fakePayments) CreatePaymentLink(ctx context.Context, priceID string) (string, error) {
	return "https://pay.test/" + priceID, nil
}

func (p *fakePayments) UpdateProduct(ctx context.Context, event *events.Event) error {
	return nil
}

func (p *fakePayments) DeactivateProduct(ctx context.Context, productID string) error {
	return nil
}

func (p *fakePayments) ReplacePrice(ctx context.Context, productID string, dollars float64) (string, error) {
	if dollars == 0 {
		return "", nil
	}
	return "price_new_" + productID, nil
}

// fakeViews is an in-memory ViewTracker and events.ViewPurger.
type fakeViews struct {
	mu     sync.Mutex
	counts map[string]map[string]int
	order  map[string][]string
}

func newFakeViews() *fakeViews {
	return &fakeViews{counts: make(map[string]map[string]int), order: make(map[string][]string)}
}

func (v *fakeViews) Record(ctx context.Context, userID, eventID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.counts[userID] == nil {
		v.counts[userID] = make(map[string]int)
	}
	if v.counts[userID][eventID] == 0 {
		v.order[userID] = append(v.order[userID], eventID)
	}
	v.counts[userID][eventID]++
	return nil
}

func (v *fakeViews) Recent(ctx context.Context, userID string) ([]string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	ids := slices.Clone(v.order[userID])
	sort.SliceStable(ids, func(i, j int) bool {
		return v.counts[userID][ids[i]] > v.counts[userID][ids[j]]
	})
	if len(ids) > 4 {
		ids = ids[:4]
	}
	return ids, nil
}

func (v *fakeViews) Forget(ctx context.Context, eventID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for userID := range v.counts {
		delete(v.counts[userID], eventID)
		v.order[userID] = dropID(v.order[userID], eventID)
	}
	return nil
}

// noopComp satisfies events.Compensator.
type noopComp struct{}

func (noopComp) CleanupProduct(ctx context.Context, productID string) error { return nil }
func (noopComp) CleanupImage(ctx context.Context, key string) error         { return nil }
func (noopComp) RepairHostedList(ctx context.Context, userID, eventID string) error {
	return nil
}
func (noopComp) RepairPaymentLink(ctx context.Context, eventID, productID string, dollars float64) error {
	return nil
}

// testImageStore backs the handlers' upload path.
type testImageStore struct {
	mu      sync.Mutex
	puts    []string
	deletes []string
}

func (s *testImageStore) Put(ctx context.Context, upload images.Upload) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := "stored_" + upload.Filename
	s.puts = append(s.puts, key)
	return key, nil
}

func (s *testImageStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes = append(s.deletes, key)
	return nil
}

func (s *testImageStore) URL(key string) string {
	return "https://cdn.test/" + key
}

type env struct {
	eventRepo    *memEventRepo
	userRepo     *memUserRepo
	payments     *fakePayments
	views        *fakeViews
	eventImages  *testImageStore
	userImages   *testImageStore
	eventService *events.Service
	userService  *users.Service
	eventsAPI    *EventsHandler
	usersAPI     *UsersHandler
}

func newEnv(t *testing.T) *env {
	t.Helper()

	e := &env{
		eventRepo:   newMemEventRepo(),
		userRepo:    newMemUserRepo(),
		payments:    &fakePayments{},
		views:       newFakeViews(),
		eventImages: &testImageStore{},
		userImages:  &testImageStore{},
	}

	directory := userDirectory{repo: e.userRepo}
	e.eventService = events.NewService(e.eventRepo, directory, e.payments, e.eventImages, e.views, noopComp{}, zerolog.Nop())
	e.userService = users.NewService(e.userRepo, e.eventService, e.userImages, zerolog.Nop())
	e.eventsAPI = NewEventsHandler(e.eventService, e.eventImages, e.views, "test")
	e.usersAPI = NewUsersHandler(e.userService, e.userImages, e.eventImages, "test")
	return e
}

func authedRequest(t *testing.T, method, target, userKey string, body io.Reader) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	subject := auth.Subject{Raw: "auth0|" + userKey, Provider: "auth0", Key: userKey}
	return req.WithContext(middleware.ContextWithSubject(req.Context(), subject))
}

func jsonBody(t *testing.T, payload any) *bytes.Reader {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

// multipartBody packs a JSON document plus an optional file part the
// way the browser client submits forms.
func multipartBody(t *testing.T, jsonField string, payload any, fileField, filename string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	data, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, writer.WriteField(jsonField, string(data)))

	if filename != "" {
		part, err := writer.CreateFormFile(fileField, filename)
		require.NoError(t, err)
		_, err = part.Write([]byte("fake image bytes"))
		require.NoError(t, err)
	}

	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func validEventInput() map[string]any {
	return map[string]any{
		"name":        "Jazz Night",
		"categories":  []string{"music"},
		"address":     "12 Rue de la Paix",
		"city":        "Paris",
		"state":       "Ile-de-France",
		"country":     "France",
		"zip":         "75002",
		"price":       25.0,
		"totalSeats":  120,
		"minAge":      18,
		"description": "An evening of live jazz.",
		"eventDate":   time.Now().AddDate(0, 1, 0).Format("2006-01-02"),
		"startTime":   "19:00",
		"endTime":     "23:00",
	}
}

func validUserInput() map[string]any {
	return map[string]any{
		"firstName":   "Marie",
		"lastName":    "Curie",
		"email":       "marie@example.com",
		"phone":       "5551234567",
		"gender":      "female",
		"dateOfBirth": "1990-11-07",
		"address":     "1 Science Way",
		"city":        "Paris",
		"state":       "Ile-de-France",
		"country":     "France",
		"zip":         "75005",
	}
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}
