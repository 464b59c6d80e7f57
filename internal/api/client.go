// Package api wraps outbound HTTP calls to the launchpad backend and to the
// console server. Every failure is normalized to an *Error carrying a
// generic message; the underlying cause is logged, not shown.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"launchpad/internal/config"
)

// maxErrorBody caps how much of a failed response body is kept for logging
const maxErrorBody = 4096

// Error is the only error type endpoint functions return
type Error struct {
	Op         string // e.g. "sign in"
	StatusCode int    // 0 when no response was received
	cause      error
}

func (e *Error) Error() string {
	return "Failed to " + e.Op
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Client configures the base URL, timeout and credential mode for calls to
// one upstream.
type Client struct {
	baseURL    string
	endpoints  config.Endpoints
	httpClient *http.Client
	logger     *slog.Logger
}

// Option customizes a Client
type Option func(*Client)

// WithJar sends and stores cookies through jar on every call
func WithJar(jar http.CookieJar) Option {
	return func(c *Client) {
		c.httpClient.Jar = jar
	}
}

// WithTransport replaces the HTTP transport
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.httpClient.Transport = rt
	}
}

// NewClient creates a client for the backend described by cfg
func NewClient(cfg *config.Config, logger *slog.Logger, opts ...Option) *Client {
	return newClient(cfg.BackendURL, cfg.Endpoints, cfg.HTTPTimeout(), logger, opts...)
}

func newClient(baseURL string, endpoints config.Endpoints, timeout time.Duration, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		endpoints: endpoints,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.With("component", "api"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// request describes one outbound call
type request struct {
	op     string
	method string
	path   string
	token  string
	query  url.Values
	body   any
	form   url.Values
}

// joinPath appends escaped path segments to an endpoint
func joinPath(endpoint string, segments ...string) string {
	p := strings.TrimRight(endpoint, "/")
	for _, s := range segments {
		p += "/" + url.PathEscape(s)
	}
	return p
}

// do issues req and decodes a 2xx JSON response into out (if non-nil).
// Anything else becomes an *Error.
func (c *Client) do(ctx context.Context, req request, out any) error {
	resp, err := c.send(ctx, req)
	if err != nil {
		return c.fail(req, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return c.fail(req, resp.StatusCode, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return c.fail(req, resp.StatusCode, fmt.Errorf("failed to decode response: %w", err))
	}

	return nil
}

// send builds and executes the HTTP request without interpreting the status
func (c *Client) send(ctx context.Context, req request) (*http.Response, error) {
	target := c.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	var reqBody io.Reader
	contentType := ""
	switch {
	case req.body != nil:
		data, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
		contentType = "application/json"
	case req.form != nil:
		reqBody = strings.NewReader(req.form.Encode())
		contentType = "application/x-www-form-urlencoded"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if req.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

func (c *Client) fail(req request, status int, cause error) *Error {
	c.logger.Error("Request failed",
		"op", req.op,
		"method", req.method,
		"path", req.path,
		"status", status,
		"error", cause)
	return &Error{Op: req.op, StatusCode: status, cause: cause}
}

// invalid rejects a call before any request is made
func (c *Client) invalid(op string, cause error) *Error {
	c.logger.Warn("Rejected request", "op", op, "error", cause)
	return &Error{Op: op, cause: cause}
}
