package handler

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgo/gather/api/internal/middleware"
	"github.com/forgo/gather/api/internal/model"
	"github.com/forgo/gather/api/internal/service"
	"github.com/forgo/gather/api/internal/testing/memstore"
	"github.com/forgo/gather/api/pkg/jwt"
)

// testAPI runs the full HTTP surface against the in-memory store
type testAPI struct {
	t     *testing.T
	store *memstore.Store
	srv   *httptest.Server
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tokens := jwt.NewTestService(key, "gather.test", time.Hour)

	store := memstore.New()
	broadcaster := service.NewBroadcaster()
	allocator := service.NewSeatAllocator(store.Registrations(), store.Events(), broadcaster)

	authService := service.NewAuthService(store.Users(), tokens)
	eventService := service.NewEventService(store.Events(), allocator)
	registrationService := service.NewRegistrationService(allocator, store.Registrations(), store.Events())

	authHandler := NewAuthHandler(authService)
	eventHandler := NewEventHandler(eventService)
	registrationHandler := NewRegistrationHandler(registrationService)
	watchHandler := NewWatchHandler(allocator, broadcaster)
	healthHandler := NewHealthHandler(store)

	auth := middleware.Auth(tokens)
	authed := func(h http.HandlerFunc) http.Handler { return auth(h) }
	organizer := func(h http.HandlerFunc) http.Handler {
		return auth(middleware.RequireOrganizer(h))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/auth/register", authHandler.Register)
	mux.HandleFunc("POST /v1/auth/login", authHandler.Login)
	mux.HandleFunc("GET /v1/events", eventHandler.ListEvents)
	mux.Handle("POST /v1/events", organizer(eventHandler.CreateEvent))
	mux.HandleFunc("GET /v1/events/{eventId}", eventHandler.GetEvent)
	mux.Handle("PATCH /v1/events/{eventId}", authed(eventHandler.UpdateEvent))
	mux.Handle("DELETE /v1/events/{eventId}", authed(eventHandler.DeleteEvent))
	mux.Handle("POST /v1/events/{eventId}/register", authed(registrationHandler.Register))
	mux.Handle("DELETE /v1/events/{eventId}/register", authed(registrationHandler.Unregister))
	mux.Handle("GET /v1/events/{eventId}/registrations", authed(registrationHandler.ListRegistrations))
	mux.Handle("GET /v1/events/{eventId}/stats", authed(eventHandler.Stats))
	mux.HandleFunc("GET /v1/events/{eventId}/watch", watchHandler.Watch)
	mux.Handle("GET /v1/users/me/events", authed(eventHandler.MyEvents))
	mux.Handle("GET /v1/users/me/registrations", authed(registrationHandler.MyRegistrations))
	mux.HandleFunc("GET /v1/health", healthHandler.Health)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &testAPI{t: t, store: store, srv: srv}
}

func (a *testAPI) do(method, path, token string, body interface{}) *http.Response {
	a.t.Helper()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequest(method, a.srv.URL+path, reader)
	require.NoError(a.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := a.srv.Client().Do(req)
	require.NoError(a.t, err)
	a.t.Cleanup(func() { res.Body.Close() })
	return res
}

func decodeData(t *testing.T, res *http.Response, v interface{}) {
	t.Helper()
	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&wrapper))
	require.NoError(t, json.Unmarshal(wrapper.Data, v))
}

// signup registers an account and logs in, returning the user and token
func (a *testAPI) signup(name, email, role string) (*model.User, string) {
	a.t.Helper()

	res := a.do(http.MethodPost, "/v1/auth/register", "", model.RegisterUserRequest{
		Name:     name,
		Email:    email,
		Password: "correct-horse-battery",
		Role:     role,
	})
	require.Equal(a.t, http.StatusCreated, res.StatusCode)

	res = a.do(http.MethodPost, "/v1/auth/login", "", model.LoginRequest{
		Email:    email,
		Password: "correct-horse-battery",
	})
	require.Equal(a.t, http.StatusOK, res.StatusCode)

	var tokenResp model.TokenResponse
	decodeData(a.t, res, &tokenResp)
	require.NotEmpty(a.t, tokenResp.Token)
	return tokenResp.User, tokenResp.Token
}

// createEvent publishes an event as the given organizer
func (a *testAPI) createEvent(token, title string, seats int) *model.Event {
	a.t.Helper()

	res := a.do(http.MethodPost, "/v1/events", token, model.CreateEventRequest{
		Title: title,
		Date:  time.Now().Add(48 * time.Hour).UTC().Truncate(time.Second),
		Seats: seats,
	})
	require.Equal(a.t, http.StatusCreated, res.StatusCode)

	var event model.Event
	decodeData(a.t, res, &event)
	require.NotEmpty(a.t, event.ID)
	return &event
}

func TestAuthFlow(t *testing.T) {
	api := newTestAPI(t)

	res := api.do(http.MethodPost, "/v1/auth/register", "", model.RegisterUserRequest{
		Name:     "Ada",
		Email:    "ada@example.com",
		Password: "supersecret",
	})
	require.Equal(t, http.StatusCreated, res.StatusCode)

	var user model.User
	decodeData(t, res, &user)
	assert.Equal(t, "Ada", user.Name)
	assert.Equal(t, model.UserRoleUser, user.Role)
	assert.NotEmpty(t, user.ID)

	// Duplicate email is rejected
	res = api.do(http.MethodPost, "/v1/auth/register", "", model.RegisterUserRequest{
		Name:     "Imposter",
		Email:    "ada@example.com",
		Password: "alsosecret",
	})
	assert.Equal(t, http.StatusConflict, res.StatusCode)

	// Wrong password fails the same way as an unknown email
	res = api.do(http.MethodPost, "/v1/auth/login", "", model.LoginRequest{
		Email:    "ada@example.com",
		Password: "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res = api.do(http.MethodPost, "/v1/auth/login", "", model.LoginRequest{
		Email:    "nobody@example.com",
		Password: "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res = api.do(http.MethodPost, "/v1/auth/login", "", model.LoginRequest{
		Email:    "ada@example.com",
		Password: "supersecret",
	})
	require.Equal(t, http.StatusOK, res.StatusCode)

	var tokenResp model.TokenResponse
	decodeData(t, res, &tokenResp)
	assert.NotEmpty(t, tokenResp.Token)
	assert.Equal(t, user.ID, tokenResp.User.ID)
}

func TestRegisterValidation(t *testing.T) {
	api := newTestAPI(t)

	res := api.do(http.MethodPost, "/v1/auth/register", "", model.RegisterUserRequest{
		Name:     "Ada",
		Email:    "not-an-email",
		Password: "supersecret",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)

	var problem model.ProblemDetails
	require.NoError(t, json.NewDecoder(res.Body).Decode(&problem))
	require.Len(t, problem.Errors, 1)
	assert.Equal(t, "email", problem.Errors[0].Field)
}

func TestEventLifecycle(t *testing.T) {
	api := newTestAPI(t)
	_, organizerToken := api.signup("Olive", "olive@example.com", "organizer")
	_, attendeeToken := api.signup("Ada", "ada@example.com", "")

	// Only organizers may publish
	res := api.do(http.MethodPost, "/v1/events", attendeeToken, model.CreateEventRequest{
		Title: "Not allowed",
		Date:  time.Now().Add(time.Hour),
		Seats: 10,
	})
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	event := api.createEvent(organizerToken, "Go Meetup", 10)

	// Anyone can read the event, with availability
	res = api.do(http.MethodGet, "/v1/events/"+event.ID, "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var withAvail model.EventWithAvailability
	decodeData(t, res, &withAvail)
	assert.Equal(t, "Go Meetup", withAvail.Event.Title)
	assert.Equal(t, 0, withAvail.RegisteredCount)
	assert.Equal(t, 10, withAvail.AvailableSeats)

	// A non-organizer cannot edit
	title := "Hijacked"
	res = api.do(http.MethodPatch, "/v1/events/"+event.ID, attendeeToken, model.UpdateEventRequest{Title: &title})
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	// The organizer can
	title = "Go Meetup (rescheduled)"
	res = api.do(http.MethodPatch, "/v1/events/"+event.ID, organizerToken, model.UpdateEventRequest{Title: &title})
	require.Equal(t, http.StatusOK, res.StatusCode)
	var updated model.Event
	decodeData(t, res, &updated)
	assert.Equal(t, title, updated.Title)

	// A non-organizer cannot delete
	res = api.do(http.MethodDelete, "/v1/events/"+event.ID, attendeeToken, nil)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	res = api.do(http.MethodDelete, "/v1/events/"+event.ID, organizerToken, nil)
	assert.Equal(t, http.StatusNoContent, res.StatusCode)

	res = api.do(http.MethodGet, "/v1/events/"+event.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestRegistrationFlow(t *testing.T) {
	api := newTestAPI(t)
	_, organizerToken := api.signup("Olive", "olive@example.com", "organizer")
	_, adaToken := api.signup("Ada", "ada@example.com", "")
	_, graceToken := api.signup("Grace", "grace@example.com", "")
	_, lateToken := api.signup("Late", "late@example.com", "")

	event := api.createEvent(organizerToken, "Workshop", 2)
	registerPath := "/v1/events/" + event.ID + "/register"

	// Unauthenticated registration is rejected
	res := api.do(http.MethodPost, registerPath, "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	// First seat
	res = api.do(http.MethodPost, registerPath, adaToken, nil)
	require.Equal(t, http.StatusCreated, res.StatusCode)
	var snapshot model.Snapshot
	decodeData(t, res, &snapshot)
	assert.Equal(t, 1, snapshot.RegisteredCount)
	assert.Equal(t, 1, snapshot.AvailableSeats)

	// Registering twice is a conflict and does not consume a seat
	res = api.do(http.MethodPost, registerPath, adaToken, nil)
	assert.Equal(t, http.StatusConflict, res.StatusCode)

	// Last seat
	res = api.do(http.MethodPost, registerPath, graceToken, nil)
	require.Equal(t, http.StatusCreated, res.StatusCode)
	decodeData(t, res, &snapshot)
	assert.Equal(t, 2, snapshot.RegisteredCount)
	assert.Equal(t, 0, snapshot.AvailableSeats)

	// Event is full
	res = api.do(http.MethodPost, registerPath, lateToken, nil)
	assert.Equal(t, http.StatusConflict, res.StatusCode)

	// Cancelling frees the seat for the latecomer
	res = api.do(http.MethodDelete, registerPath, adaToken, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	decodeData(t, res, &snapshot)
	assert.Equal(t, 1, snapshot.RegisteredCount)
	assert.Equal(t, 1, snapshot.AvailableSeats)

	// Cancelling again reports the absence
	res = api.do(http.MethodDelete, registerPath, adaToken, nil)
	assert.Equal(t, http.StatusConflict, res.StatusCode)

	res = api.do(http.MethodPost, registerPath, lateToken, nil)
	assert.Equal(t, http.StatusCreated, res.StatusCode)
}

func TestRegisterUnknownEvent(t *testing.T) {
	api := newTestAPI(t)
	_, token := api.signup("Ada", "ada@example.com", "")

	res := api.do(http.MethodPost, "/v1/events/event:missing/register", token, nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestOrganizerStats(t *testing.T) {
	api := newTestAPI(t)
	_, organizerToken := api.signup("Olive", "olive@example.com", "organizer")
	_, adaToken := api.signup("Ada", "ada@example.com", "")
	_, graceToken := api.signup("Grace", "grace@example.com", "")

	event := api.createEvent(organizerToken, "Workshop", 5)
	registerPath := "/v1/events/" + event.ID + "/register"

	res := api.do(http.MethodPost, registerPath, adaToken, nil)
	require.Equal(t, http.StatusCreated, res.StatusCode)
	res = api.do(http.MethodPost, registerPath, graceToken, nil)
	require.Equal(t, http.StatusCreated, res.StatusCode)

	// Attendees cannot see the dashboard
	res = api.do(http.MethodGet, "/v1/events/"+event.ID+"/stats", adaToken, nil)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	res = api.do(http.MethodGet, "/v1/events/"+event.ID+"/stats", organizerToken, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var stats model.EventStats
	decodeData(t, res, &stats)
	assert.Equal(t, 2, stats.TotalRegistrations)
	assert.Equal(t, 3, stats.AvailableSeats)
	assert.Equal(t, []string{"Ada", "Grace"}, stats.Registrants)

	// The roster is organizer-only too
	res = api.do(http.MethodGet, "/v1/events/"+event.ID+"/registrations", adaToken, nil)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	res = api.do(http.MethodGet, "/v1/events/"+event.ID+"/registrations", organizerToken, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var regs []*model.Registration
	decodeData(t, res, &regs)
	assert.Len(t, regs, 2)
}

func TestMyRegistrations(t *testing.T) {
	api := newTestAPI(t)
	_, organizerToken := api.signup("Olive", "olive@example.com", "organizer")
	_, adaToken := api.signup("Ada", "ada@example.com", "")

	first := api.createEvent(organizerToken, "Workshop", 5)
	second := api.createEvent(organizerToken, "Conference", 5)

	res := api.do(http.MethodPost, "/v1/events/"+first.ID+"/register", adaToken, nil)
	require.Equal(t, http.StatusCreated, res.StatusCode)
	res = api.do(http.MethodPost, "/v1/events/"+second.ID+"/register", adaToken, nil)
	require.Equal(t, http.StatusCreated, res.StatusCode)

	res = api.do(http.MethodGet, "/v1/users/me/registrations", adaToken, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var regs []*model.RegistrationWithEvent
	decodeData(t, res, &regs)
	require.Len(t, regs, 2)
	for _, reg := range regs {
		require.NotNil(t, reg.Event)
		assert.Contains(t, []string{first.ID, second.ID}, reg.Event.ID)
	}
}

func TestMyEvents(t *testing.T) {
	api := newTestAPI(t)
	_, oliveToken := api.signup("Olive", "olive@example.com", "organizer")
	_, otherToken := api.signup("Omar", "omar@example.com", "organizer")

	api.createEvent(oliveToken, "Olive's Event", 5)
	api.createEvent(otherToken, "Omar's Event", 5)

	res := api.do(http.MethodGet, "/v1/users/me/events", oliveToken, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var events []*model.EventWithAvailability
	decodeData(t, res, &events)
	require.Len(t, events, 1)
	assert.Equal(t, "Olive's Event", events[0].Event.Title)
}

func TestDeleteEventCascades(t *testing.T) {
	api := newTestAPI(t)
	_, organizerToken := api.signup("Olive", "olive@example.com", "organizer")
	_, adaToken := api.signup("Ada", "ada@example.com", "")

	event := api.createEvent(organizerToken, "Doomed", 5)
	res := api.do(http.MethodPost, "/v1/events/"+event.ID+"/register", adaToken, nil)
	require.Equal(t, http.StatusCreated, res.StatusCode)

	res = api.do(http.MethodDelete, "/v1/events/"+event.ID, organizerToken, nil)
	require.Equal(t, http.StatusNoContent, res.StatusCode)

	// The registration died with the event
	res = api.do(http.MethodGet, "/v1/users/me/registrations", adaToken, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var regs []*model.RegistrationWithEvent
	decodeData(t, res, &regs)
	assert.Empty(t, regs)
}

func TestWatchStreamsSnapshots(t *testing.T) {
	api := newTestAPI(t)
	_, organizerToken := api.signup("Olive", "olive@example.com", "organizer")
	_, adaToken := api.signup("Ada", "ada@example.com", "")

	event := api.createEvent(organizerToken, "Watched", 3)

	wsURL := strings.Replace(api.srv.URL, "http://", "ws://", 1) + "/v1/events/" + event.ID + "/watch"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	readSnapshot := func() model.Snapshot {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var snapshot model.Snapshot
		require.NoError(t, conn.ReadJSON(&snapshot))
		return snapshot
	}

	// Initial snapshot on connect
	snapshot := readSnapshot()
	assert.Equal(t, 0, snapshot.RegisteredCount)
	assert.Equal(t, 3, snapshot.AvailableSeats)

	res := api.do(http.MethodPost, "/v1/events/"+event.ID+"/register", adaToken, nil)
	require.Equal(t, http.StatusCreated, res.StatusCode)

	snapshot = readSnapshot()
	assert.Equal(t, 1, snapshot.RegisteredCount)
	assert.Equal(t, 2, snapshot.AvailableSeats)

	res = api.do(http.MethodDelete, "/v1/events/"+event.ID+"/register", adaToken, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	snapshot = readSnapshot()
	assert.Equal(t, 0, snapshot.RegisteredCount)
	assert.Equal(t, 3, snapshot.AvailableSeats)
}

func TestWatchUnknownEvent(t *testing.T) {
	api := newTestAPI(t)

	res := api.do(http.MethodGet, "/v1/events/event:missing/watch", "", nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestWatchClosedOnDelete(t *testing.T) {
	api := newTestAPI(t)
	_, organizerToken := api.signup("Olive", "olive@example.com", "organizer")

	event := api.createEvent(organizerToken, "Short-lived", 3)

	wsURL := strings.Replace(api.srv.URL, "http://", "ws://", 1) + "/v1/events/" + event.ID + "/watch"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var snapshot model.Snapshot
	require.NoError(t, conn.ReadJSON(&snapshot))

	res := api.do(http.MethodDelete, "/v1/events/"+event.ID, organizerToken, nil)
	require.Equal(t, http.StatusNoContent, res.StatusCode)

	// The server closes the stream once the event is gone
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		if err := conn.ReadJSON(&snapshot); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure),
				"expected a close frame, got %v", err)
			return
		}
	}
}

func TestInvalidToken(t *testing.T) {
	api := newTestAPI(t)

	res := api.do(http.MethodGet, "/v1/users/me/registrations", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)

	res := api.do(http.MethodGet, "/v1/health", "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}
