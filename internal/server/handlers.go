package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"launchpad/internal/actions"
	"launchpad/internal/api"
	"launchpad/internal/models"
)

const (
	MaxFormBytes = 64 << 10 // 64 KB

	errNotSignedIn      = "Not signed in"
	errNoRefreshToken   = "No refresh token found"
	errRefreshFallback  = "Unknown error"
	errInvalidFormInput = "Invalid form data"
)

// refreshResponse is the body of GET /api/refresh
type refreshResponse struct {
	Success     bool                 `json:"success"`
	AccessToken *models.TokenDetails `json:"access_token,omitempty"`
	Error       string               `json:"error,omitempty"`
}

// HandleHealth handles health check requests
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleSignUp registers an account
func (s *Server) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	values, ok := s.parseForm(w, r)
	if !ok {
		return
	}
	s.respondAction(w, s.Actions.SignUp(r.Context(), values))
}

// HandleSignIn signs in and sets the refresh cookie
func (s *Server) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	values, ok := s.parseForm(w, r)
	if !ok {
		return
	}
	s.respondAction(w, s.Actions.SignIn(r.Context(), s.cookies(w, r), values))
}

// HandleVerify resends the verification mail
func (s *Server) HandleVerify(w http.ResponseWriter, r *http.Request) {
	values, ok := s.parseForm(w, r)
	if !ok {
		return
	}
	s.respondAction(w, s.Actions.Verify(r.Context(), values))
}

// HandleLogout ends the session and deletes the refresh cookie
func (s *Server) HandleLogout(w http.ResponseWriter, r *http.Request) {
	token, ok := s.requireBearer(w, r)
	if !ok {
		return
	}
	values, ok := s.parseForm(w, r)
	if !ok {
		return
	}
	s.respondAction(w, s.Actions.Logout(r.Context(), s.cookies(w, r), token, values))
}

// HandleCreateProject creates a project for the bearer
func (s *Server) HandleCreateProject(w http.ResponseWriter, r *http.Request) {
	token, ok := s.requireBearer(w, r)
	if !ok {
		return
	}
	values, ok := s.parseForm(w, r)
	if !ok {
		return
	}
	s.respondAction(w, s.Actions.CreateProject(r.Context(), token, values))
}

// HandleProfile returns the bearer's profile
func (s *Server) HandleProfile(w http.ResponseWriter, r *http.Request) {
	token, ok := s.requireBearer(w, r)
	if !ok {
		return
	}
	s.respondAction(w, s.Actions.Profile(r.Context(), token))
}

// HandleRefresh exchanges the refresh cookie for a new access token
func (s *Server) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	token, err := s.Actions.Refresh(r.Context(), s.cookies(w, r))
	if errors.Is(err, actions.ErrNoRefreshToken) {
		s.respondJSON(w, http.StatusUnauthorized, refreshResponse{Error: errNoRefreshToken})
		return
	}
	if err != nil {
		msg := errRefreshFallback
		var apiErr *api.Error
		if errors.As(err, &apiErr) {
			msg = apiErr.Error()
		}
		s.respondJSON(w, http.StatusInternalServerError, refreshResponse{Error: msg})
		return
	}

	s.respondJSON(w, http.StatusCreated, refreshResponse{Success: true, AccessToken: token})
}

// parseForm reads a url-encoded body, answering 400 itself on failure
func (s *Server) parseForm(w http.ResponseWriter, r *http.Request) (url.Values, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxFormBytes)
	if err := r.ParseForm(); err != nil {
		s.Logger.Warn("Failed to parse form", "path", r.URL.Path, "error", err)
		s.respondJSON(w, http.StatusBadRequest, actions.Result{Error: errInvalidFormInput})
		return nil, false
	}
	return r.PostForm, true
}

// requireBearer extracts the access token, answering 401 when missing
func (s *Server) requireBearer(w http.ResponseWriter, r *http.Request) (string, bool) {
	token := bearerToken(r)
	if token == "" {
		s.respondJSON(w, http.StatusUnauthorized, actions.Result{Error: errNotSignedIn})
		return "", false
	}
	return token, true
}

func bearerToken(r *http.Request) string {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// respondAction maps an action result to a status code: 200 on success,
// 400 for field errors, 502 when the backend call failed.
func (s *Server) respondAction(w http.ResponseWriter, result actions.Result) {
	status := http.StatusOK
	switch {
	case result.Success:
	case result.Invalid():
		status = http.StatusBadRequest
	default:
		status = http.StatusBadGateway
	}
	s.respondJSON(w, status, result)
}

// respondJSON sends a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	writeJSON(w, s.Logger, statusCode, data)
}

func respondError(w http.ResponseWriter, logger *slog.Logger, statusCode int, msg string) {
	writeJSON(w, logger, statusCode, map[string]any{"success": false, "error": msg})
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode JSON response", "error", err)
	}
}
