package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/http/cookiejar"
	"sync/atomic"
	"testing"
	"time"

	"launchpad/internal/analytics"
	"launchpad/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	projectID    = "3f2b8c1e-9d4a-4e8b-b7c6-1a2d3e4f5a6b"
	deploymentID = "8a1c2d3e-4f5a-4b6c-8d7e-9f0a1b2c3d4e"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testEndpoints() config.Endpoints {
	return config.Endpoints{
		Login:          "/auth/login",
		Signup:         "/auth/register",
		Logout:         "/auth/logout",
		Profile:        "/user/me",
		Refresh:        "/auth/refresh",
		Verify:         "/create/token",
		GetProject:     "/project",
		AllProjects:    "/projects",
		CreateProject:  "/project/create",
		DeleteProject:  "/project/delete",
		GetDeployments: "/deployments",
		GetDeployment:  "/deployment",
		Analytics:      "/project/analytics",
		Deploy:         "/deploy/create",
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	return newClient(srv.URL, testEndpoints(), 5*time.Second, discardLogger()), &calls
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestSignIn_DecodesLoginResponse(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/login", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		var body SignInInput
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "a@b.com", body.Email)
		assert.Equal(t, "12345678", body.Password)

		_, _ = io.WriteString(w, `{
			"session_id": "S1",
			"refresh_token": "R1",
			"access_token": "T1",
			"access_token_expires_at": "2026-01-01T00:15:00Z",
			"refresh_token_expires_at": "2026-01-08T00:00:00Z",
			"User": {"id": "u1", "name": "Ada", "email": "a@b.com", "is_verified": true}
		}`)
	})

	login, err := client.SignIn(context.Background(), SignInInput{Email: "a@b.com", Password: "12345678"})
	require.NoError(t, err)

	assert.Equal(t, "T1", login.AccessToken)
	assert.Equal(t, "S1", login.SessionID)
	assert.Equal(t, "Ada", login.User.Name)
	assert.Equal(t, "R1", login.RefreshDetails().RefreshToken)
	assert.Equal(t, 2026, login.RefreshTokenExpiresAt.Year())
}

func TestListProjects_SendsBearerAndPaging(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer T1", r.Header.Get("Authorization"))
		assert.Equal(t, "12", r.URL.Query().Get("limit"))
		assert.Equal(t, "24", r.URL.Query().Get("offset"))
		assert.Equal(t, "blog", r.URL.Query().Get("name"))
		_, _ = io.WriteString(w, `[{"id":"p1","name":"blog","sub_domain":"blog-x","git_url":"https://github.com/a/blog"}]`)
	})

	projects, err := client.ListProjects(context.Background(), "T1", 12, 24, "blog")
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "blog-x", projects[0].SubDomain)
}

func TestErrorsAreNormalized(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "pq: relation \"projects\" does not exist", http.StatusInternalServerError)
	})

	_, err := client.ListProjects(context.Background(), "T1", 12, 0, "")
	require.Error(t, err)

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Failed to get projects", err.Error())
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.NotContains(t, err.Error(), "relation")
}

func TestTransportErrorIsNormalized(t *testing.T) {
	client := newClient("http://127.0.0.1:1", testEndpoints(), time.Second, discardLogger())

	err := client.SignUp(context.Background(), SignUpInput{Name: "Ada", Email: "a@b.com", Password: "12345678"})
	require.Error(t, err)
	assert.Equal(t, "Failed to sign up", err.Error())

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 0, apiErr.StatusCode)
}

func TestMalformedBodyIsNormalized(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `not json`)
	})

	_, err := client.Profile(context.Background(), "T1")
	require.Error(t, err)
	assert.Equal(t, "Failed to fetch profile", err.Error())
}

func TestLogout_DeletesSessionPath(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/auth/logout/S1", r.URL.Path)
		assert.Equal(t, "Bearer T1", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, client.Logout(context.Background(), "T1", "S1"))
}

func TestInvalidPathSegmentsSkipNetwork(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	ctx := context.Background()

	_, err := client.GetProject(ctx, "T1", "../admin")
	assert.EqualError(t, err, "Failed to get project")

	err = client.DeleteProject(ctx, "T1", "not-a-uuid")
	assert.EqualError(t, err, "Failed to delete project")

	_, err = client.GetDeployment(ctx, "T1", "")
	assert.EqualError(t, err, "Failed to get deployment")

	err = client.Logout(ctx, "T1", "")
	assert.EqualError(t, err, "Failed to logout")

	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
}

func TestGetProject(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/project/blog-x", r.URL.Path)
		_, _ = io.WriteString(w, `{
			"Project": {"id": "p1", "name": "blog", "sub_domain": "blog-x"},
			"Deployment": {
				"Deployment": {"id": "d1", "status": "SUCCESS", "sequence": 3},
				"Logs": [{"log": "build ok"}, {"log": ""}]
			}
		}`)
	})

	project, err := client.GetProject(context.Background(), "T1", "blog-x")
	require.NoError(t, err)
	assert.Equal(t, "blog", project.Project.Name)
	assert.Equal(t, 3, project.Deployment.Deployment.Sequence)
	assert.Len(t, project.Deployment.VisibleLogs(), 1)
}

func TestGetAnalytics_EncodesRange(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/project/analytics/blog-x", r.URL.Path)
		assert.Equal(t, "2026-01-01", r.URL.Query().Get("from"))
		assert.Equal(t, "2026-01-07", r.URL.Query().Get("to"))
		_, _ = io.WriteString(w, `[{"subdomain":"blog-x","path":"/","status_code":200,"response_time_ms":12}]`)
	})

	r, err := analytics.ParseRange("2026-01-01", "2026-01-07")
	require.NoError(t, err)

	records, err := client.GetAnalytics(context.Background(), "T1", "blog-x", r)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.NotNil(t, records[0].ResponseTimeMs)
	assert.Equal(t, 12, *records[0].ResponseTimeMs)
}

func TestDeploy_SendsUserEnv(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/deploy/create/"+projectID, r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.JSONEq(t, `{"PORT":"8080"}`, body["user_env"])
		writeJSON(w, http.StatusOK, map[string]string{"status": "queued", "project_slug": "blog-x", "deployment_id": deploymentID})
	})

	resp, err := client.Deploy(context.Background(), "T1", projectID, `{"PORT":"8080"}`)
	require.NoError(t, err)
	assert.Equal(t, "queued", resp.Status)
	assert.Equal(t, deploymentID, resp.DeploymentID)
}

func newTestConsole(t *testing.T, handler http.HandlerFunc) *ConsoleClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	cfg := config.NewConfig()
	cfg.ConsoleURL = srv.URL
	return NewConsoleClient(cfg, jar, discardLogger())
}

func TestConsoleSignIn_PostsForm(t *testing.T) {
	console := newTestConsole(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, RouteSignIn, r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "a@b.com", r.PostForm.Get("email"))
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data": map[string]any{
				"access_token": "T1",
				"session_id":   "S1",
				"User":         map[string]any{"email": "a@b.com"},
			},
		})
	})

	details, err := console.SignIn(context.Background(), "a@b.com", "12345678")
	require.NoError(t, err)
	assert.Equal(t, "T1", details.AccessToken)
	assert.Equal(t, "S1", details.TokenDetails().SessionID)
}

func TestConsoleAction_FieldErrors(t *testing.T) {
	console := newTestConsole(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"field_errors": map[string][]string{
				"password": {"Password must be at least 8 characters long."},
				"email":    {"Enter a valid email."},
			},
		})
	})

	_, err := console.SignIn(context.Background(), "nope", "short")
	require.Error(t, err)

	var actionErr *ActionError
	require.True(t, errors.As(err, &actionErr))
	assert.Len(t, actionErr.FieldErrors, 2)
	assert.Equal(t, "email: Enter a valid email.; password: Password must be at least 8 characters long.", err.Error())
}

func TestConsoleRenew(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		console := newTestConsole(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, RouteRefresh, r.URL.Path)
			writeJSON(w, http.StatusCreated, map[string]any{
				"success":      true,
				"access_token": map[string]any{"access_token": "T2", "session_id": "S1"},
			})
		})

		details, err := console.Renew(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "T2", details.AccessToken)
	})

	t.Run("no cookie", func(t *testing.T) {
		console := newTestConsole(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "error": "No refresh token found"})
		})

		details, err := console.Renew(context.Background())
		assert.Nil(t, details)
		var apiErr *Error
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	})
}
