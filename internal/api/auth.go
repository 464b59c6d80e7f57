package api

import (
	"context"
	"errors"
	"net/http"

	"launchpad/internal/models"
)

// SignUpInput is the body of a registration
type SignUpInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignInInput is the body of a login
type SignInInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUp creates an account; the backend sends a verification email
func (c *Client) SignUp(ctx context.Context, in SignUpInput) error {
	return c.do(ctx, request{
		op:     "sign up",
		method: http.MethodPost,
		path:   c.endpoints.Signup,
		body:   in,
	}, nil)
}

// SignIn exchanges credentials for access and refresh tokens
func (c *Client) SignIn(ctx context.Context, in SignInInput) (*models.LoginResponse, error) {
	var out models.LoginResponse
	if err := c.do(ctx, request{
		op:     "sign in",
		method: http.MethodPost,
		path:   c.endpoints.Login,
		body:   in,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Verify asks the backend to resend the verification email
func (c *Client) Verify(ctx context.Context, email string) error {
	return c.do(ctx, request{
		op:     "send mail",
		method: http.MethodPost,
		path:   c.endpoints.Verify,
		body:   map[string]string{"email": email},
	}, nil)
}

// Refresh exchanges a refresh token for a new access token
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*models.TokenDetails, error) {
	var out models.TokenDetails
	if err := c.do(ctx, request{
		op:     "refresh",
		method: http.MethodPost,
		path:   c.endpoints.Refresh,
		body:   map[string]string{"refresh_token": refreshToken},
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout invalidates the session server-side
func (c *Client) Logout(ctx context.Context, token, sessionID string) error {
	const op = "logout"
	if sessionID == "" {
		return c.invalid(op, errNoSession)
	}
	return c.do(ctx, request{
		op:     op,
		method: http.MethodDelete,
		path:   joinPath(c.endpoints.Logout, sessionID),
		token:  token,
	}, nil)
}

// Profile fetches the signed-in user
func (c *Client) Profile(ctx context.Context, token string) (*models.User, error) {
	var out models.User
	if err := c.do(ctx, request{
		op:     "fetch profile",
		method: http.MethodGet,
		path:   c.endpoints.Profile,
		token:  token,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

var errNoSession = errors.New("no session id")
