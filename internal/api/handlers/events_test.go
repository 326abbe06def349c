package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/allez-events/server/internal/api/problem"
	"github.com/stretchr/testify/require"
)

func createEvent(t *testing.T, e *env, hostKey string, overrides map[string]any) eventPayload {
	t.Helper()
	input := validEventInput()
	for field, value := range overrides {
		input[field] = value
	}
	body, contentType := multipartBody(t, "event", input, "eventImg", "banner.png")
	req := authedRequest(t, http.MethodPost, "/api/v1/events", hostKey, body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	e.eventsAPI.Create(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeJSON[eventPayload](t, rec)
}

func TestCreateEventMultipart(t *testing.T) {
	e := newEnv(t)
	created := createEvent(t, e, "alice", nil)

	require.NotEmpty(t, created.ID)
	require.Equal(t, "alice", created.HostID)
	require.NotEmpty(t, created.PaymentURL)
	require.Equal(t, "https://cdn.test/stored_banner.png", created.ImageURL)
	require.Equal(t, []string{"stored_banner.png"}, e.eventImages.puts)
}

func TestCreateFreeEventHasNoPaymentURL(t *testing.T) {
	e := newEnv(t)
	created := createEvent(t, e, "alice", map[string]any{"price": 0})
	require.Empty(t, created.PaymentURL)
}

func TestCreateEventJSONBody(t *testing.T) {
	e := newEnv(t)
	req := authedRequest(t, http.MethodPost, "/api/v1/events", "alice", jsonBody(t, validEventInput()))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.eventsAPI.Create(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeJSON[eventPayload](t, rec)
	require.Empty(t, created.ImageURL)
}

func TestCreateEventValidationProblem(t *testing.T) {
	e := newEnv(t)
	req := authedRequest(t, http.MethodPost, "/api/v1/events", "alice",
		jsonBody(t, map[string]any{"name": "x"}))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.eventsAPI.Create(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	details := decodeJSON[problem.Details](t, rec)
	require.Equal(t, problem.TypeValidation, details.Type)
	require.NotEmpty(t, details.Errors)
}

func TestCreateDuplicateNameCityConflicts(t *testing.T) {
	e := newEnv(t)
	createEvent(t, e, "alice", nil)

	req := authedRequest(t, http.MethodPost, "/api/v1/events", "bob", jsonBody(t, validEventInput()))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.eventsAPI.Create(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, problem.TypeConflict, decodeJSON[problem.Details](t, rec).Type)
}

func TestGetEvent(t *testing.T) {
	e := newEnv(t)
	created := createEvent(t, e, "alice", nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events/"+created.ID, nil)
	req.SetPathValue("id", created.ID)
	rec := httptest.NewRecorder()
	e.eventsAPI.Get(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeJSON[eventPayload](t, rec)
	require.Equal(t, created.ID, got.ID)
	require.Equal(t, created.ImageURL, got.ImageURL)
}

func TestGetEventMalformedID(t *testing.T) {
	e := newEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events/not-a-ulid", nil)
	req.SetPathValue("id", "not-a-ulid")
	rec := httptest.NewRecorder()
	e.eventsAPI.Get(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, problem.TypeInvalidID, decodeJSON[problem.Details](t, rec).Type)
}

func TestGetEventNotFound(t *testing.T) {
	e := newEnv(t)

	missing := "01JABCDEFGHJKMNPQRSTVWXYZ0"
	req := httptest.NewRequest(http.MethodGet, "/api/v1/events/"+missing, nil)
	req.SetPathValue("id", missing)
	rec := httptest.NewRecorder()
	e.eventsAPI.Get(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, problem.TypeNotFound, decodeJSON[problem.Details](t, rec).Type)
}

func TestListEvents(t *testing.T) {
	e := newEnv(t)
	createEvent(t, e, "alice", nil)
	createEvent(t, e, "bob", map[string]any{"name": "Book Fair", "city": "Lyon"})

	rec := httptest.NewRecorder()
	e.eventsAPI.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/events", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decodeJSON[[]eventPayload](t, rec), 2)
}

func TestModifyByNonHostForbidden(t *testing.T) {
	e := newEnv(t)
	created := createEvent(t, e, "alice", nil)

	req := authedRequest(t, http.MethodPut, "/api/v1/events/"+created.ID, "mallory", jsonBody(t, validEventInput()))
	req.Header.Set("Content-Type", "application/json")
	req.SetPathValue("id", created.ID)
	rec := httptest.NewRecorder()
	e.eventsAPI.Modify(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, problem.TypeForbidden, decodeJSON[problem.Details](t, rec).Type)
}

func TestModifyPriceToZeroDropsPaymentURL(t *testing.T) {
	e := newEnv(t)
	created := createEvent(t, e, "alice", nil)

	input := validEventInput()
	input["price"] = 0
	req := authedRequest(t, http.MethodPut, "/api/v1/events/"+created.ID, "alice", jsonBody(t, input))
	req.Header.Set("Content-Type", "application/json")
	req.SetPathValue("id", created.ID)
	rec := httptest.NewRecorder()
	e.eventsAPI.Modify(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Empty(t, decodeJSON[eventPayload](t, rec).PaymentURL)
}

func TestDeleteEvent(t *testing.T) {
	e := newEnv(t)
	created := createEvent(t, e, "alice", nil)

	req := authedRequest(t, http.MethodDelete, "/api/v1/events/"+created.ID, "alice", nil)
	req.SetPathValue("id", created.ID)
	rec := httptest.NewRecorder()
	e.eventsAPI.Delete(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	getReq := httptest.NewRequest(http.MethodGet, "/api/v1/events/"+created.ID, nil)
	getReq.SetPathValue("id", created.ID)
	getRec := httptest.NewRecorder()
	e.eventsAPI.Get(getRec, getReq)
	require.Equal(t, http.StatusNotFound, getRec.Code)
}

func TestRegisterAndDoubleRegister(t *testing.T) {
	e := newEnv(t)
	created := createEvent(t, e, "alice", nil)

	register := func() *httptest.ResponseRecorder {
		req := authedRequest(t, http.MethodPatch, "/api/v1/events/"+created.ID+"/register", "carol",
			jsonBody(t, map[string]string{"action": "add"}))
		req.SetPathValue("id", created.ID)
		rec := httptest.NewRecorder()
		e.eventsAPI.Register(rec, req)
		return rec
	}

	first := register()
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	require.Contains(t, decodeJSON[eventPayload](t, first).AttendeeIDs, "carol")

	second := register()
	require.Equal(t, http.StatusConflict, second.Code)
	require.Equal(t, problem.TypeAlreadyRegistered, decodeJSON[problem.Details](t, second).Type)
}

func TestCohostPromotionMovesAttendee(t *testing.T) {
	e := newEnv(t)
	created := createEvent(t, e, "alice", nil)

	regReq := authedRequest(t, http.MethodPatch, "/api/v1/events/"+created.ID+"/register", "carol",
		jsonBody(t, map[string]string{"action": "add"}))
	regReq.SetPathValue("id", created.ID)
	regRec := httptest.NewRecorder()
	e.eventsAPI.Register(regRec, regReq)
	require.Equal(t, http.StatusOK, regRec.Code)

	req := authedRequest(t, http.MethodPatch, "/api/v1/events/"+created.ID, "alice",
		jsonBody(t, map[string]string{"cohostId": "carol", "action": "add"}))
	req.SetPathValue("id", created.ID)
	rec := httptest.NewRecorder()
	e.eventsAPI.Cohost(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeJSON[eventPayload](t, rec)
	require.Contains(t, got.CohostIDs, "carol")
	require.NotContains(t, got.AttendeeIDs, "carol")
}

func TestCohostRejectsUnknownAction(t *testing.T) {
	e := newEnv(t)
	created := createEvent(t, e, "alice", nil)

	req := authedRequest(t, http.MethodPatch, "/api/v1/events/"+created.ID, "alice",
		jsonBody(t, map[string]string{"cohostId": "carol", "action": "promote"}))
	req.SetPathValue("id", created.ID)
	rec := httptest.NewRecorder()
	e.eventsAPI.Cohost(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestViewThenRecent(t *testing.T) {
	e := newEnv(t)
	first := createEvent(t, e, "alice", nil)
	second := createEvent(t, e, "alice", map[string]any{"name": "Book Fair", "city": "Lyon"})

	view := func(id string) {
		req := authedRequest(t, http.MethodPost, "/api/v1/events/"+id+"/view", "carol", nil)
		req.SetPathValue("id", id)
		rec := httptest.NewRecorder()
		e.eventsAPI.View(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	view(first.ID)
	view(second.ID)
	view(second.ID)

	req := authedRequest(t, http.MethodGet, "/api/v1/events/recent", "carol", nil)
	rec := httptest.NewRecorder()
	e.eventsAPI.Recent(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeJSON[[]eventPayload](t, rec)
	require.Len(t, got, 2)
	require.Equal(t, second.ID, got[0].ID)
	require.Equal(t, first.ID, got[1].ID)
}

func TestRecentSkipsDeletedEvents(t *testing.T) {
	e := newEnv(t)
	created := createEvent(t, e, "alice", nil)

	viewReq := authedRequest(t, http.MethodPost, "/api/v1/events/"+created.ID+"/view", "carol", nil)
	viewReq.SetPathValue("id", created.ID)
	e.eventsAPI.View(httptest.NewRecorder(), viewReq)

	delReq := authedRequest(t, http.MethodDelete, "/api/v1/events/"+created.ID, "alice", nil)
	delReq.SetPathValue("id", created.ID)
	e.eventsAPI.Delete(httptest.NewRecorder(), delReq)

	req := authedRequest(t, http.MethodGet, "/api/v1/events/recent", "carol", nil)
	rec := httptest.NewRecorder()
	e.eventsAPI.Recent(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, decodeJSON[[]eventPayload](t, rec))
}

func TestUnauthenticatedCreateRejected(t *testing.T) {
	e := newEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", jsonBody(t, validEventInput()))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.eventsAPI.Create(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
