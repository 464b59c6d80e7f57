// Package server implements the launchpad console server.
//
// The console sits between clients and the backend API. It runs the
// server-side actions (sign up, sign in, verification mail, logout,
// project creation, profile) and owns the HTTP-only refresh cookie:
// sign in sets it, logout deletes it and GET /api/refresh exchanges it
// for a fresh access token. Clients never see the refresh token itself.
//
// Routes:
//   - POST /actions/signup, /actions/signin, /actions/verify (form body)
//   - POST /actions/logout, /actions/projects (form body, Bearer token)
//   - GET /actions/profile (Bearer token)
//   - GET /api/refresh (refresh cookie)
//   - GET /health
//
// Action responses are {success, data, error, field_errors} with status
// 200 on success, 400 for invalid input and 502 when the backend failed.
// Requests are logged with slog and rate limited per IP, with a tighter
// limit on the credential actions.
package server
