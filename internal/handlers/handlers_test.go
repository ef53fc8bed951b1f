package handlers_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/HarshPratapSingh1/ChatVerse/internal/handlers"
	"github.com/HarshPratapSingh1/ChatVerse/internal/server/middleware"
	"github.com/HarshPratapSingh1/ChatVerse/internal/store"
	"github.com/HarshPratapSingh1/ChatVerse/pkg/identity"
)

func testLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

type testAPI struct {
	router   chi.Router
	store    *store.BadgerStore
	verifier *identity.Verifier
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	logger := testLogger()

	dataStore, err := store.NewBadgerStore("", true, logger)
	require.NoError(t, err)
	t.Cleanup(func() { dataStore.Close() })

	verifier := identity.NewVerifier("test-secret", time.Hour)
	h := handlers.NewHandler(dataStore, verifier, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestMetadataMiddleware())
	requireAuth := middleware.NewAuthMiddleware(logger, verifier)

	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)
	r.Get("/profile", h.Profile)
	r.Get("/people", h.People)
	r.With(requireAuth).Get("/messages/{userId}", h.Messages)

	return &testAPI{router: r, store: dataStore, verifier: verifier}
}

func (a *testAPI) do(t *testing.T, method, path, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func tokenCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.CredentialCookie {
			return c
		}
	}
	t.Fatal("no credential cookie in response")
	return nil
}

func TestRegisterSetsCredentialCookie(t *testing.T) {
	req := require.New(t)
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/register", `{"username":"alice","password":"s3cret"}`, nil)
	req.Equal(http.StatusCreated, rec.Code)

	var body map[string]string
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	req.NotEmpty(body["_id"])

	cookie := tokenCookie(t, rec)
	id, err := api.verifier.Verify(cookie.Value)
	req.NoError(err)
	req.Equal(body["_id"], id.UserID)
	req.Equal("alice", id.Username)
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	req := require.New(t)
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/register", `{"username":"alice","password":"s3cret"}`, nil)
	req.Equal(http.StatusCreated, rec.Code)

	rec = api.do(t, http.MethodPost, "/register", `{"username":"alice","password":"other"}`, nil)
	req.Equal(http.StatusBadRequest, rec.Code)
}

func TestLoginFlow(t *testing.T) {
	req := require.New(t)
	api := newTestAPI(t)
	api.do(t, http.MethodPost, "/register", `{"username":"alice","password":"s3cret"}`, nil)

	rec := api.do(t, http.MethodPost, "/login", `{"username":"alice","password":"s3cret"}`, nil)
	req.Equal(http.StatusCreated, rec.Code)
	tokenCookie(t, rec)

	rec = api.do(t, http.MethodPost, "/login", `{"username":"alice","password":"wrong"}`, nil)
	req.Equal(http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPost, "/login", `{"username":"nobody","password":"s3cret"}`, nil)
	req.Equal(http.StatusBadRequest, rec.Code)
}

func TestProfileRequiresValidCredential(t *testing.T) {
	req := require.New(t)
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/profile", "", nil)
	req.Equal(http.StatusUnauthorized, rec.Code)

	rec = api.do(t, http.MethodGet, "/profile", "", &http.Cookie{Name: middleware.CredentialCookie, Value: "garbage"})
	req.Equal(http.StatusUnauthorized, rec.Code)

	reg := api.do(t, http.MethodPost, "/register", `{"username":"alice","password":"s3cret"}`, nil)
	rec = api.do(t, http.MethodGet, "/profile", "", tokenCookie(t, reg))
	req.Equal(http.StatusOK, rec.Code)

	var body map[string]string
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	req.Equal("alice", body["username"])
	req.NotEmpty(body["userId"])
}

func TestPeopleListsAllUsers(t *testing.T) {
	req := require.New(t)
	api := newTestAPI(t)
	api.do(t, http.MethodPost, "/register", `{"username":"alice","password":"s3cret"}`, nil)
	api.do(t, http.MethodPost, "/register", `{"username":"bob","password":"s3cret"}`, nil)

	rec := api.do(t, http.MethodGet, "/people", "", nil)
	req.Equal(http.StatusOK, rec.Code)

	var people []map[string]string
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &people))
	req.Len(people, 2)
	names := []string{people[0]["username"], people[1]["username"]}
	req.ElementsMatch([]string{"alice", "bob"}, names)
	req.NotEmpty(people[0]["_id"])
}

func TestMessagesReturnsConversationHistory(t *testing.T) {
	req := require.New(t)
	api := newTestAPI(t)

	aliceRec := api.do(t, http.MethodPost, "/register", `{"username":"alice","password":"s3cret"}`, nil)
	bobRec := api.do(t, http.MethodPost, "/register", `{"username":"bob","password":"s3cret"}`, nil)

	var alice, bob map[string]string
	req.NoError(json.Unmarshal(aliceRec.Body.Bytes(), &alice))
	req.NoError(json.Unmarshal(bobRec.Body.Bytes(), &bob))

	ctx := context.Background()
	base := time.Now()
	_, err := api.store.AppendMessage(ctx, store.Message{
		Sender: alice["_id"], Recipient: bob["_id"], Text: "hi bob", CreatedAt: base,
	})
	req.NoError(err)
	_, err = api.store.AppendMessage(ctx, store.Message{
		Sender: bob["_id"], Recipient: alice["_id"], Text: "hi alice", CreatedAt: base.Add(time.Millisecond),
	})
	req.NoError(err)

	// Unauthenticated: rejected before the store is touched.
	rec := api.do(t, http.MethodGet, "/messages/"+bob["_id"], "", nil)
	req.Equal(http.StatusUnauthorized, rec.Code)

	rec = api.do(t, http.MethodGet, "/messages/"+bob["_id"], "", tokenCookie(t, aliceRec))
	req.Equal(http.StatusOK, rec.Code)

	var history []map[string]any
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &history))
	req.Len(history, 2)
	req.Equal("hi bob", history[0]["text"])
	req.Equal("hi alice", history[1]["text"])
	req.Nil(history[0]["file"])
	req.NotEmpty(history[0]["_id"])
}
