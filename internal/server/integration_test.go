package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"launchpad/internal/actions"
	"launchpad/internal/api"
	"launchpad/internal/cache"
	"launchpad/internal/config"
	"launchpad/internal/models"
	"launchpad/internal/queries"
	"launchpad/internal/server"
	"launchpad/internal/session"
	"launchpad/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// fakeBackend serves the backend routes the session lifecycle touches
func fakeBackend(t *testing.T, refreshCalls *int32) *httptest.Server {
	t.Helper()
	loggedOut := atomic.Bool{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/auth/login":
			writeJSON(w, http.StatusOK, models.LoginResponse{
				SessionID:             "s1",
				AccessToken:           "A0",
				AccessTokenExpiresAt:  time.Now().Add(15 * time.Minute),
				RefreshToken:          "R1",
				RefreshTokenExpiresAt: time.Now().Add(24 * time.Hour),
				User:                  models.User{ID: "u1", Name: "Ada", Email: "ada@example.com", IsVerified: true},
			})

		case r.Method == http.MethodPost && r.URL.Path == "/auth/refresh":
			var body struct {
				RefreshToken string `json:"refresh_token"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body.RefreshToken != "R1" || loggedOut.Load() {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid refresh token"})
				return
			}
			n := atomic.AddInt32(refreshCalls, 1)
			writeJSON(w, http.StatusOK, models.TokenDetails{
				AccessToken:          fmt.Sprintf("A%d", n),
				AccessTokenExpiresAt: time.Now().Add(15 * time.Minute),
				SessionID:            "s1",
			})

		case r.Method == http.MethodDelete && r.URL.Path == "/auth/logout/s1":
			if r.Header.Get("Authorization") == "" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing token"})
				return
			}
			loggedOut.Store(true)
			writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})

		case r.Method == http.MethodGet && r.URL.Path == "/user/me":
			writeJSON(w, http.StatusOK, models.User{ID: "u1", Name: "Ada", Email: "ada@example.com"})

		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newSession(t *testing.T, renewer session.Renewer, s *cache.Store, logger *slog.Logger) *session.Cache {
	t.Helper()
	c, err := session.New(s, renewer,
		session.WithDependents(queries.DependentKeys()...),
		session.WithLogger(logger),
	)
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	t.Cleanup(c.Stop)
	return c
}

// TestSessionLifecycle signs in through the console, renews from the
// persisted cookie in a second "invocation" and signs out again.
func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var refreshCalls int32
	backendSrv := fakeBackend(t, &refreshCalls)

	cfg := config.NewConfig()
	cfg.BackendURL = backendSrv.URL
	cfg.Endpoints = config.Endpoints{
		Login:   "/auth/login",
		Logout:  "/auth/logout",
		Profile: "/user/me",
		Refresh: "/auth/refresh",
	}

	backend := api.NewClient(cfg, logger)
	consoleSrv := httptest.NewServer(server.NewServer(actions.New(backend, logger), false, logger, true).Router())
	t.Cleanup(consoleSrv.Close)
	cfg.ConsoleURL = consoleSrv.URL

	jar, err := store.Open(filepath.Join(t.TempDir(), "cookies.db"), logger)
	if err != nil {
		t.Fatalf("Failed to open jar: %v", err)
	}
	t.Cleanup(func() { jar.Close() })
	console := api.NewConsoleClient(cfg, jar, logger)

	// Before sign in there is nothing to renew from
	before := newSession(t, console, cache.New(), logger)
	if _, err := before.Require(ctx); !errors.Is(err, session.ErrSignedOut) {
		t.Fatalf("Expected ErrSignedOut before sign in, got %v", err)
	}

	details, err := console.SignIn(ctx, "ada@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Sign in failed: %v", err)
	}
	if details.AccessToken != "A0" || details.User.Name != "Ada" {
		t.Errorf("Unexpected sign in details: %+v", details)
	}

	cookie, err := jar.Get(ctx, "127.0.0.1", server.RefreshCookieName)
	if err != nil || cookie == nil {
		t.Fatalf("Expected refresh cookie in the jar, got %v (err %v)", cookie, err)
	}
	if !cookie.HTTPOnly {
		t.Error("Expected refresh cookie to be HttpOnly")
	}

	// A later invocation starts with an empty cache and renews from the cookie
	qcache := cache.New()
	sess := newSession(t, console, qcache, logger)
	tok, err := sess.Require(ctx)
	if err != nil {
		t.Fatalf("Expected renewal from cookie, got %v", err)
	}
	if tok.AccessToken != "A1" || tok.SessionID != "s1" {
		t.Errorf("Unexpected renewed token: %+v", tok)
	}

	q := queries.NewClient(qcache, sess, backend, console, logger)
	profile := q.Profile(ctx)
	if profile.Status != queries.StatusSuccess || profile.Data.Name != "Ada" {
		t.Fatalf("Expected profile, got %+v", profile)
	}

	if err := console.Logout(ctx, tok.AccessToken, tok.SessionID); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	sess.Invalidate()

	if cookie, _ := jar.Get(ctx, "127.0.0.1", server.RefreshCookieName); cookie != nil {
		t.Error("Expected logout to delete the refresh cookie")
	}
	if sess.Token() != nil {
		t.Error("Expected no token after sign out")
	}
	if r := q.Profile(ctx); r.Status != queries.StatusDisabled {
		t.Errorf("Expected profile query to be disabled after sign out, got %s", r.Status)
	}

	after := newSession(t, console, cache.New(), logger)
	if _, err := after.Require(ctx); !errors.Is(err, session.ErrSignedOut) {
		t.Errorf("Expected ErrSignedOut after logout, got %v", err)
	}
	if n := atomic.LoadInt32(&refreshCalls); n != 1 {
		t.Errorf("Expected exactly one successful refresh, got %d", n)
	}
}

type failingRenewer struct{}

func (failingRenewer) Renew(ctx context.Context) (*models.TokenDetails, error) {
	return nil, errors.New("no refresh cookie")
}

// TestSignInEnablesProjectSearch follows a sign-in through to the first
// page of a filtered project search.
func TestSignInEnablesProjectSearch(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var (
		mu       sync.Mutex
		requests []*http.Request
	)
	backendSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests = append(requests, r.Clone(context.Background()))
		mu.Unlock()

		if r.Method != http.MethodGet || r.URL.Path != "/projects" {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, http.StatusOK, []models.Project{{ID: "p1", Name: "x-site", SubDomain: "x-site"}})
	}))
	t.Cleanup(backendSrv.Close)

	cfg := config.NewConfig()
	cfg.BackendURL = backendSrv.URL
	cfg.Endpoints = config.Endpoints{AllProjects: "/projects"}

	qcache := cache.New()
	sess := newSession(t, failingRenewer{}, qcache, logger)
	q := queries.NewClient(qcache, sess, api.NewClient(cfg, logger), nil, logger)

	search := q.SearchProjects("x", 5)
	if r := search.FetchNextPage(ctx); r.Status != queries.StatusDisabled {
		t.Fatalf("Expected search to be disabled before sign in, got %s", r.Status)
	}
	mu.Lock()
	if len(requests) != 0 {
		t.Errorf("Expected no backend request while signed out, got %d", len(requests))
	}
	mu.Unlock()

	sess.SetFromLogin(&models.AuthUserDetails{
		User:                 models.User{ID: "u1", Name: "Ada"},
		AccessToken:          "T1",
		AccessTokenExpiresAt: time.Now().Add(15 * time.Minute),
		SessionID:            "s1",
	})

	r := search.FetchNextPage(ctx)
	if r.Status != queries.StatusSuccess {
		t.Fatalf("Expected search to succeed after sign in, got %s (%v)", r.Status, r.Err)
	}
	if got := r.Projects(); len(got) != 1 || got[0].ID != "p1" {
		t.Errorf("Unexpected projects: %+v", got)
	}
	if r.HasNextPage {
		t.Error("Expected a short page to end the search")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(requests) != 1 {
		t.Fatalf("Expected one backend request, got %d", len(requests))
	}
	req := requests[0]
	if got := req.Header.Get("Authorization"); got != "Bearer T1" {
		t.Errorf("Expected Authorization 'Bearer T1', got %q", got)
	}
	query := req.URL.Query()
	if query.Get("offset") != "0" || query.Get("limit") != "5" || query.Get("name") != "x" {
		t.Errorf("Unexpected query: %s", req.URL.RawQuery)
	}

	// A failed renewal leaves the signed-in token in place
	if tok := sess.Renew(ctx); tok != nil {
		t.Errorf("Expected renewal to fail, got %+v", tok)
	}
	if tok := sess.Token(); tok == nil || tok.AccessToken != "T1" {
		t.Errorf("Expected token T1 to survive a failed renewal, got %+v", tok)
	}
}
