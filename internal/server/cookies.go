package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"launchpad/internal/models"
)

// RefreshCookieName is the HTTP-only cookie holding the refresh token
const RefreshCookieName = "refresh_token"

// requestCookies is the refresh cookie view of one request/response pair
type requestCookies struct {
	w      http.ResponseWriter
	r      *http.Request
	secure bool
	logger *slog.Logger
}

func (s *Server) cookies(w http.ResponseWriter, r *http.Request) *requestCookies {
	return &requestCookies{w: w, r: r, secure: s.SecureCookies, logger: s.Logger}
}

// SetRefresh stores details as URL-escaped JSON expiring with the token
func (c *requestCookies) SetRefresh(details models.RefreshTokenDetails) {
	raw, err := json.Marshal(details)
	if err != nil {
		c.logger.Error("Failed to encode refresh cookie", "error", err)
		return
	}

	http.SetCookie(c.w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    url.QueryEscape(string(raw)),
		Path:     "/",
		Expires:  details.RefreshTokenExpiresAt,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// DeleteRefresh expires the cookie
func (c *requestCookies) DeleteRefresh() {
	http.SetCookie(c.w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// RefreshToken reads the cookie. An undecodable value counts as absent.
func (c *requestCookies) RefreshToken() (*models.RefreshTokenDetails, bool) {
	cookie, err := c.r.Cookie(RefreshCookieName)
	if err != nil || cookie.Value == "" {
		return nil, false
	}

	raw, err := url.QueryUnescape(cookie.Value)
	if err != nil {
		c.logger.Warn("Malformed refresh cookie", "error", err)
		return nil, false
	}

	var details models.RefreshTokenDetails
	if err := json.Unmarshal([]byte(raw), &details); err != nil {
		c.logger.Warn("Malformed refresh cookie", "error", err)
		return nil, false
	}
	return &details, true
}
