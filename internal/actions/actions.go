// Package actions implements the console's server-side actions. Each one
// validates form input, calls the backend once, performs at most one side
// effect and reports the outcome as a Result. Actions never return errors
// and never retry.
package actions

import (
	"context"
	"errors"
	"log/slog"
	"net/url"

	"launchpad/internal/api"
	"launchpad/internal/models"
	"launchpad/internal/validate"
)

// ErrNoRefreshToken means the request carried no usable refresh cookie
var ErrNoRefreshToken = errors.New("no refresh token found")

// Backend is the subset of the backend API the actions call
type Backend interface {
	SignUp(ctx context.Context, in api.SignUpInput) error
	SignIn(ctx context.Context, in api.SignInInput) (*models.LoginResponse, error)
	Verify(ctx context.Context, email string) error
	Refresh(ctx context.Context, refreshToken string) (*models.TokenDetails, error)
	Logout(ctx context.Context, token, sessionID string) error
	Profile(ctx context.Context, token string) (*models.User, error)
	CreateProject(ctx context.Context, token string, in api.CreateProjectInput) (*models.Project, error)
}

// Cookies is the refresh cookie of the current request/response pair
type Cookies interface {
	SetRefresh(details models.RefreshTokenDetails)
	DeleteRefresh()
	// RefreshToken returns the stored payload, false when absent or unreadable
	RefreshToken() (*models.RefreshTokenDetails, bool)
}

// Result is what every action returns
type Result struct {
	Success     bool                 `json:"success"`
	Data        any                  `json:"data,omitempty"`
	Error       string               `json:"error,omitempty"`
	FieldErrors validate.FieldErrors `json:"field_errors,omitempty"`
}

// Invalid reports whether the action stopped at validation
func (r Result) Invalid() bool {
	return len(r.FieldErrors) > 0
}

// Actions binds the actions to a backend
type Actions struct {
	backend Backend
	logger  *slog.Logger
}

// New creates the action set
func New(backend Backend, logger *slog.Logger) *Actions {
	return &Actions{
		backend: backend,
		logger:  logger.With("component", "actions"),
	}
}

func ok(data any) Result {
	return Result{Success: true, Data: data}
}

func invalid(errs validate.FieldErrors) Result {
	return Result{Success: false, FieldErrors: errs}
}

// failed converts a backend error to a result. api errors already carry a
// generic message; anything else falls back to the given one.
func (a *Actions) failed(action string, err error, fallback string) Result {
	a.logger.Warn("Action failed", "action", action, "error", err)

	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return Result{Success: false, Error: apiErr.Error()}
	}
	return Result{Success: false, Error: fallback}
}

// SignUp registers an account
func (a *Actions) SignUp(ctx context.Context, values url.Values) Result {
	var form validate.SignUp
	if errs := validate.Form(values, &form); errs != nil {
		return invalid(errs)
	}

	if err := a.backend.SignUp(ctx, api.SignUpInput{
		Name:     form.Name,
		Email:    form.Email,
		Password: form.Password,
	}); err != nil {
		return a.failed("signup", err, "Failed to sign up")
	}

	return ok(nil)
}

// SignIn exchanges credentials for tokens and persists the refresh token
// in the cookie. The refresh token is not part of the result.
func (a *Actions) SignIn(ctx context.Context, cookies Cookies, values url.Values) Result {
	var form validate.SignIn
	if errs := validate.Form(values, &form); errs != nil {
		return invalid(errs)
	}

	login, err := a.backend.SignIn(ctx, api.SignInInput{Email: form.Email, Password: form.Password})
	if err != nil {
		return a.failed("signin", err, "Failed to sign in")
	}

	cookies.SetRefresh(login.RefreshDetails())

	return ok(models.AuthUserDetails{
		User:                 login.User,
		AccessToken:          login.AccessToken,
		AccessTokenExpiresAt: login.AccessTokenExpiresAt,
		SessionID:            login.SessionID,
	})
}

// Verify requests a new verification email
func (a *Actions) Verify(ctx context.Context, values url.Values) Result {
	var form validate.Verify
	if errs := validate.Form(values, &form); errs != nil {
		return invalid(errs)
	}

	if err := a.backend.Verify(ctx, form.Email); err != nil {
		return a.failed("verify", err, "Failed to send mail")
	}

	return ok(nil)
}

// Logout ends the session and deletes the refresh cookie
func (a *Actions) Logout(ctx context.Context, cookies Cookies, token string, values url.Values) Result {
	sessionID := values.Get("session_id")
	if sessionID == "" {
		return invalid(validate.FieldErrors{"session_id": {"No session ID"}})
	}

	if err := a.backend.Logout(ctx, token, sessionID); err != nil {
		return a.failed("logout", err, "Failed to logout")
	}

	cookies.DeleteRefresh()
	return ok(nil)
}

// CreateProject creates a project for the bearer of token
func (a *Actions) CreateProject(ctx context.Context, token string, values url.Values) Result {
	var form validate.CreateProject
	if errs := validate.Form(values, &form); errs != nil {
		return invalid(errs)
	}

	project, err := a.backend.CreateProject(ctx, token, api.CreateProjectInput{
		Name:   form.Name,
		GitURL: form.GitURL,
	})
	if err != nil {
		return a.failed("create_project", err, "Failed to create project")
	}

	return ok(project)
}

// Profile fetches the current user
func (a *Actions) Profile(ctx context.Context, token string) Result {
	user, err := a.backend.Profile(ctx, token)
	if err != nil {
		return a.failed("profile", err, "Failed to fetch profile")
	}
	return ok(user)
}

// Refresh exchanges the refresh cookie for a new access token. It returns
// ErrNoRefreshToken when the cookie is missing.
func (a *Actions) Refresh(ctx context.Context, cookies Cookies) (*models.TokenDetails, error) {
	details, found := cookies.RefreshToken()
	if !found || details.RefreshToken == "" {
		return nil, ErrNoRefreshToken
	}

	token, err := a.backend.Refresh(ctx, details.RefreshToken)
	if err != nil {
		a.logger.Warn("Refresh failed", "error", err)
		return nil, err
	}
	return token, nil
}
