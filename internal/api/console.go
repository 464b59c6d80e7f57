package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"launchpad/internal/config"
	"launchpad/internal/models"
)

// Console server routes
const (
	RouteSignUp        = "/actions/signup"
	RouteSignIn        = "/actions/signin"
	RouteVerify        = "/actions/verify"
	RouteLogout        = "/actions/logout"
	RouteCreateProject = "/actions/projects"
	RouteProfile       = "/actions/profile"
	RouteRefresh       = "/api/refresh"
)

// ActionResponse is the JSON body every console action returns
type ActionResponse[T any] struct {
	Success     bool                `json:"success"`
	Data        *T                  `json:"data,omitempty"`
	Error       string              `json:"error,omitempty"`
	FieldErrors map[string][]string `json:"field_errors,omitempty"`
}

// RefreshResponse is the body of the refresh route
type RefreshResponse struct {
	Success     bool                 `json:"success"`
	AccessToken *models.TokenDetails `json:"access_token,omitempty"`
	Error       string               `json:"error,omitempty"`
}

// ActionError is an action that completed with success=false
type ActionError struct {
	Message     string
	FieldErrors map[string][]string
}

func (e *ActionError) Error() string {
	if len(e.FieldErrors) == 0 {
		return e.Message
	}

	fields := make([]string, 0, len(e.FieldErrors))
	for field := range e.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+strings.Join(e.FieldErrors[field], " "))
	}
	return strings.Join(parts, "; ")
}

// ConsoleClient calls the console server. Its cookie jar plays the part of
// the browser: the refresh_token cookie is stored and replayed by the jar
// and never read by this code.
type ConsoleClient struct {
	*Client
}

// NewConsoleClient creates a client for the console server in cfg
func NewConsoleClient(cfg *config.Config, jar http.CookieJar, logger *slog.Logger, opts ...Option) *ConsoleClient {
	opts = append([]Option{WithJar(jar)}, opts...)
	return &ConsoleClient{
		Client: newClient(cfg.ConsoleURL, config.Endpoints{}, cfg.HTTPTimeout(), logger.With("upstream", "console"), opts...),
	}
}

// runAction posts to an action route and unwraps its result
func runAction[T any](ctx context.Context, c *ConsoleClient, req request) (*T, error) {
	resp, err := c.send(ctx, req)
	if err != nil {
		return nil, c.fail(req, 0, err)
	}
	defer resp.Body.Close()

	var out ActionResponse[T]
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, c.fail(req, resp.StatusCode, fmt.Errorf("failed to decode action result: %w", err))
	}

	if !out.Success {
		return nil, &ActionError{Message: out.Error, FieldErrors: out.FieldErrors}
	}
	if out.Data == nil {
		var zero T
		return &zero, nil
	}
	return out.Data, nil
}

// SignUp creates an account through the console
func (c *ConsoleClient) SignUp(ctx context.Context, name, email, password string) error {
	_, err := runAction[struct{}](ctx, c, request{
		op:     "sign up",
		method: http.MethodPost,
		path:   RouteSignUp,
		form:   url.Values{"name": {name}, "email": {email}, "password": {password}},
	})
	return err
}

// SignIn signs in through the console, which stores the refresh cookie in
// the jar.
func (c *ConsoleClient) SignIn(ctx context.Context, email, password string) (*models.AuthUserDetails, error) {
	return runAction[models.AuthUserDetails](ctx, c, request{
		op:     "sign in",
		method: http.MethodPost,
		path:   RouteSignIn,
		form:   url.Values{"email": {email}, "password": {password}},
	})
}

// Verify asks for a new verification email
func (c *ConsoleClient) Verify(ctx context.Context, email string) error {
	_, err := runAction[struct{}](ctx, c, request{
		op:     "send mail",
		method: http.MethodPost,
		path:   RouteVerify,
		form:   url.Values{"email": {email}},
	})
	return err
}

// Logout ends the session; the console deletes the refresh cookie
func (c *ConsoleClient) Logout(ctx context.Context, token, sessionID string) error {
	_, err := runAction[struct{}](ctx, c, request{
		op:     "logout",
		method: http.MethodPost,
		path:   RouteLogout,
		token:  token,
		form:   url.Values{"session_id": {sessionID}},
	})
	return err
}

// CreateProject creates a project through the console action
func (c *ConsoleClient) CreateProject(ctx context.Context, token, name, gitURL string) (*models.Project, error) {
	return runAction[models.Project](ctx, c, request{
		op:     "create project",
		method: http.MethodPost,
		path:   RouteCreateProject,
		token:  token,
		form:   url.Values{"name": {name}, "git_url": {gitURL}},
	})
}

// Profile fetches the user through the console action
func (c *ConsoleClient) Profile(ctx context.Context, token string) (*models.User, error) {
	return runAction[models.User](ctx, c, request{
		op:     "fetch profile",
		method: http.MethodGet,
		path:   RouteProfile,
		token:  token,
	})
}

// Renew exchanges the jar's refresh cookie for a new access token
func (c *ConsoleClient) Renew(ctx context.Context) (*models.TokenDetails, error) {
	req := request{op: "refresh", method: http.MethodGet, path: RouteRefresh}

	var out RefreshResponse
	if err := c.do(ctx, req, &out); err != nil {
		return nil, err
	}
	if !out.Success || out.AccessToken == nil {
		return nil, c.fail(req, 0, fmt.Errorf("refresh rejected: %s", out.Error))
	}
	return out.AccessToken, nil
}
