// Package models holds the wire types exchanged with the launchpad backend
// and the console server.
package models

import (
	"encoding/json"
	"time"
)

// Deployment status values reported by the backend
const (
	StatusQueued  = "QUEUED"
	StatusPending = "PENDING"
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

// User is the account profile. Read-only from the client's side.
type User struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	IsVerified bool   `json:"is_verified"`
}

// TokenDetails is the result of a refresh exchange. A nil *TokenDetails
// means signed out.
type TokenDetails struct {
	AccessToken          string    `json:"access_token"`
	AccessTokenExpiresAt time.Time `json:"access_token_expires_at"`
	SessionID            string    `json:"session_id"`
}

// RefreshTokenDetails is the payload stored in the refresh_token cookie
type RefreshTokenDetails struct {
	RefreshToken          string    `json:"refresh_token"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
}

// LoginResponse is returned by the backend login endpoint.
// The user object is serialized without a tag, hence "User".
type LoginResponse struct {
	SessionID             string    `json:"session_id"`
	RefreshToken          string    `json:"refresh_token"`
	AccessTokenExpiresAt  time.Time `json:"access_token_expires_at"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
	AccessToken           string    `json:"access_token"`
	User                  User      `json:"User"`
}

// TokenDetails extracts the access token part of a login
func (l *LoginResponse) TokenDetails() *TokenDetails {
	return &TokenDetails{
		AccessToken:          l.AccessToken,
		AccessTokenExpiresAt: l.AccessTokenExpiresAt,
		SessionID:            l.SessionID,
	}
}

// RefreshDetails extracts the cookie payload of a login
func (l *LoginResponse) RefreshDetails() RefreshTokenDetails {
	return RefreshTokenDetails{
		RefreshToken:          l.RefreshToken,
		RefreshTokenExpiresAt: l.RefreshTokenExpiresAt,
	}
}

// AuthUserDetails is what a sign-in hands back to the client. The refresh
// token never leaves the console server.
type AuthUserDetails struct {
	User                 User      `json:"User"`
	AccessToken          string    `json:"access_token"`
	AccessTokenExpiresAt time.Time `json:"access_token_expires_at"`
	SessionID            string    `json:"session_id"`
}

// TokenDetails extracts the access token part
func (a *AuthUserDetails) TokenDetails() *TokenDetails {
	return &TokenDetails{
		AccessToken:          a.AccessToken,
		AccessTokenExpiresAt: a.AccessTokenExpiresAt,
		SessionID:            a.SessionID,
	}
}

// Project is owned by a user and reachable under its subdomain
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	SubDomain string    `json:"sub_domain"`
	CreatedAt time.Time `json:"created_at"`
	GitURL    string    `json:"git_url"`
}

// Deployment belongs to a project and is immutable from the client
type Deployment struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Status    string    `json:"status"`
	Sequence  int       `json:"sequence"`
}

// IsTerminal reports whether the deployment has finished
func (d *Deployment) IsTerminal() bool {
	return d.Status == StatusSuccess || d.Status == StatusFailed
}

// LogEvent is a single append-only build log line
type LogEvent struct {
	Log       string          `json:"log"`
	CreatedAt time.Time       `json:"created_at"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// DeploymentWithLogs is a deployment plus its log lines
type DeploymentWithLogs struct {
	Deployment Deployment `json:"Deployment"`
	Logs       []LogEvent `json:"Logs"`
}

// VisibleLogs returns the log lines with non-empty text
func (d *DeploymentWithLogs) VisibleLogs() []LogEvent {
	var out []LogEvent
	for _, l := range d.Logs {
		if l.Log != "" {
			out = append(out, l)
		}
	}
	return out
}

// ProjectWithDeployment is a project plus its current deployment and logs
type ProjectWithDeployment struct {
	Project    Project            `json:"Project"`
	Deployment DeploymentWithLogs `json:"Deployment"`
}

// WebsiteAnalytics is one request served by a deployed project
type WebsiteAnalytics struct {
	Subdomain      string    `json:"subdomain"`
	Path           string    `json:"path"`
	Method         string    `json:"method"`
	StatusCode     int       `json:"status_code"`
	ResponseTimeMs *int      `json:"response_time_ms,omitempty"`
	UserAgent      string    `json:"user_agent"`
	IPAddress      string    `json:"ip_address"`
	Referer        string    `json:"referer"`
	CreatedAt      time.Time `json:"created_at"`
}

// CreateDeploymentResponse is returned when a deployment is queued
type CreateDeploymentResponse struct {
	Status       string `json:"status"`
	ProjectSlug  string `json:"project_slug"`
	DeploymentID string `json:"deployment_id"`
}
