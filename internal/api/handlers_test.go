package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"

	"example.com/mergington/internal/domain"
	"example.com/mergington/internal/fixtures"
	"example.com/mergington/internal/persistence/memory"
)

func newTestServer(t *testing.T, opts ...domain.Option) (*httptest.Server, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	service := domain.NewService(store, opts...)
	_, err := service.Seed(context.Background(), fixtures.Defaults())
	require.NoError(t, err)

	static := fstest.MapFS{"app.js": &fstest.MapFile{Data: []byte("console.log('hi')")}}
	mux := http.NewServeMux()
	NewHandler(service, WithStatic(static)).RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, store
}

func post(t *testing.T, srv *httptest.Server, activity, action, email string) (*http.Response, map[string]string) {
	t.Helper()
	target := srv.URL + "/activities/" + url.PathEscape(activity) + "/" + action
	if email != "" {
		target += "?email=" + url.QueryEscape(email)
	}
	resp, err := http.Post(target, "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	body := map[string]string{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp, body
}

func TestRootRedirectsToLandingPage(t *testing.T) {
	srv, _ := newTestServer(t)
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}

	resp, err := client.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	require.Equal(t, "/static/index.html", resp.Header.Get("Location"))
}

func TestStaticAndHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/static/app.js")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestListActivities(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/activities")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body map[string]ActivityView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body, 9)
	require.Equal(t, ActivityView{
		Description:     "Learn strategies and compete in chess tournaments",
		Schedule:        "Fridays, 3:30 PM - 5:00 PM",
		MaxParticipants: 12,
		Participants:    []string{"michael@mergington.edu", "daniel@mergington.edu"},
	}, body["Chess Club"])
}

func TestSignupAndUnregisterFlow(t *testing.T) {
	srv, store := newTestServer(t)

	resp, body := post(t, srv, "Chess Club", "signup", "x@y.edu")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "Signed up x@y.edu for Chess Club", body["message"])

	resp, body = post(t, srv, "Chess Club", "signup", "x@y.edu")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "Student already signed up", body["detail"])

	resp, body = post(t, srv, "Chess Club", "unregister", "michael@mergington.edu")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "Removed michael@mergington.edu from Chess Club", body["message"])

	resp, body = post(t, srv, "Chess Club", "unregister", "michael@mergington.edu")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "Student not registered", body["detail"])

	chess, err := store.Get(context.Background(), "Chess Club")
	require.NoError(t, err)
	require.Equal(t, []string{"daniel@mergington.edu", "x@y.edu"}, chess.Participants)
}

func TestUnknownActivity(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, action := range []string{"signup", "unregister"} {
		resp, body := post(t, srv, "Underwater Basket Weaving", action, "x@y.edu")
		require.Equal(t, http.StatusNotFound, resp.StatusCode, action)
		require.Equal(t, "not_found", body["type"])
		require.Equal(t, "Activity not found", body["detail"])
	}
}

func TestMissingEmailIsUnprocessable(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := post(t, srv, "Chess Club", "signup", "")
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	require.Equal(t, "validation_failed", body["type"])

	resp, _ = post(t, srv, "Chess Club", "unregister", "   ")
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestFullActivityWhenCapacityEnforced(t *testing.T) {
	srv, _ := newTestServer(t, domain.WithCapacityEnforcement(true))

	// Chess Club holds 12 and starts with 2.
	for i := 0; i < 10; i++ {
		resp, _ := post(t, srv, "Chess Club", "signup", string(rune('a'+i))+"@mergington.edu")
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, body := post(t, srv, "Chess Club", "signup", "late@mergington.edu")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "Activity is full", body["detail"])
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/activities/Chess%20Club/signup?email=x@y.edu")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestStoreFailureIsServerError(t *testing.T) {
	mux := http.NewServeMux()
	NewHandler(domain.NewService(brokenStore{})).RegisterRoutes(mux)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/activities", nil))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.JSONEq(t, `{"type":"server_error","detail":"internal error"}`, rr.Body.String())
}

type brokenStore struct{ domain.Store }

func (brokenStore) List(context.Context) ([]domain.Activity, error) {
	return nil, errors.New("connection refused")
}
