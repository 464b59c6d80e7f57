// Package queries holds the client's data-fetching operations. Every
// authenticated query reads the session token first; without one the
// query reports StatusDisabled and issues no request.
package queries

import (
	"context"
	"log/slog"
	"time"

	"launchpad/internal/analytics"
	"launchpad/internal/api"
	"launchpad/internal/cache"
	"launchpad/internal/models"
	"launchpad/internal/session"

	"golang.org/x/sync/singleflight"
)

// Status of a query result
type Status string

const (
	StatusDisabled Status = "disabled"
	StatusPending  Status = "pending"
	StatusSuccess  Status = "success"
	StatusError    Status = "error"
)

// Cache keys and prefixes of authenticated data
var (
	ProfileKey        = cache.Key{"profile"}
	ProjectsPrefix    = cache.Key{"projects"}
	ProjectPrefix     = cache.Key{"project"}
	DeploymentsPrefix = cache.Key{"deployments"}
	DeploymentPrefix  = cache.Key{"deployment"}
	AnalyticsPrefix   = cache.Key{"analytics"}
)

// DependentKeys are dropped by the session on sign-out
func DependentKeys() []cache.Key {
	return []cache.Key{
		ProfileKey,
		ProjectsPrefix,
		ProjectPrefix,
		DeploymentsPrefix,
		DeploymentPrefix,
		AnalyticsPrefix,
	}
}

// ProjectKey is the cache key of one project
func ProjectKey(subdomain string) cache.Key { return cache.Key{"project", subdomain} }

// ProjectsKey is the cache key of the project list filtered by name
func ProjectsKey(name string) cache.Key { return cache.Key{"projects", name} }

// DeploymentsKey is the cache key of a project's deployments
func DeploymentsKey(subdomain string) cache.Key { return cache.Key{"deployments", subdomain} }

// DeploymentKey is the cache key of one deployment
func DeploymentKey(id string) cache.Key { return cache.Key{"deployment", id} }

// AnalyticsKey is the cache key of a project's analytics over r
func AnalyticsKey(subdomain string, r analytics.Range) cache.Key {
	from, to := r.Bounds()
	return cache.Key{"analytics", subdomain, from, to}
}

// Result is the state of one query
type Result[T any] struct {
	Status    Status
	Data      T
	Err       error
	UpdatedAt time.Time
}

// Enabled reports whether the query ran (or would run) with a token
func (r Result[T]) Enabled() bool {
	return r.Status != StatusDisabled
}

// TokenSource provides the current access token, nil when signed out
type TokenSource interface {
	Token() *models.TokenDetails
}

// Backend is the subset of the backend API used by queries
type Backend interface {
	Profile(ctx context.Context, token string) (*models.User, error)
	ListProjects(ctx context.Context, token string, limit, offset int, name string) ([]models.Project, error)
	GetProject(ctx context.Context, token, subdomain string) (*models.ProjectWithDeployment, error)
	DeleteProject(ctx context.Context, token, projectID string) error
	ListDeployments(ctx context.Context, token, subdomain string) ([]models.Deployment, error)
	GetDeployment(ctx context.Context, token, deploymentID string) (*models.DeploymentWithLogs, error)
	GetAnalytics(ctx context.Context, token, subdomain string, r analytics.Range) ([]models.WebsiteAnalytics, error)
	Deploy(ctx context.Context, token, projectID, userEnv string) (*models.CreateDeploymentResponse, error)
}

// Console is the console action used for project creation
type Console interface {
	CreateProject(ctx context.Context, token, name, gitURL string) (*models.Project, error)
}

// QueryOption tunes a single query
type QueryOption func(*queryOptions)

type queryOptions struct {
	maxAge time.Duration
}

// MaxAge serves a cached value younger than d without a request
func MaxAge(d time.Duration) QueryOption {
	return func(o *queryOptions) {
		o.maxAge = d
	}
}

// Client runs queries against the backend through the cache
type Client struct {
	store   *cache.Store
	tokens  TokenSource
	backend Backend
	console Console
	group   singleflight.Group
	logger  *slog.Logger
}

// NewClient creates a query client
func NewClient(store *cache.Store, tokens TokenSource, backend Backend, console Console, logger *slog.Logger) *Client {
	return &Client{
		store:   store,
		tokens:  tokens,
		backend: backend,
		console: console,
		logger:  logger.With("component", "queries"),
	}
}

// fetch is the shared query flow: gate on the token, serve fresh cache,
// dedupe concurrent fetches of the same key, keep stale data on error.
func fetch[T any](ctx context.Context, c *Client, key cache.Key, opts []QueryOption, fn func(ctx context.Context, token string) (T, error)) Result[T] {
	token := c.tokens.Token()
	if token == nil {
		return Result[T]{Status: StatusDisabled}
	}

	var o queryOptions
	for _, opt := range opts {
		opt(&o)
	}

	cached, entry, found := cache.Lookup[T](c.store, key)
	if found && o.maxAge > 0 && entry.Age(c.store.Now()) < o.maxAge {
		return Result[T]{Status: StatusSuccess, Data: cached, UpdatedAt: entry.UpdatedAt}
	}

	// Keyed by session too, so a new sign-in never joins a fetch made
	// with the previous account's token.
	v, err, _ := c.group.Do(key.String()+"@"+token.SessionID, func() (any, error) {
		return fn(ctx, token.AccessToken)
	})
	if err != nil {
		c.logger.Debug("Query failed", "key", key.String(), "error", err)
		r := Result[T]{Status: StatusError, Err: err}
		if found {
			r.Data = cached
			r.UpdatedAt = entry.UpdatedAt
		}
		return r
	}

	data, _ := v.(T)
	if !c.sameSession(token) {
		c.logger.Debug("Discarding result fetched for an ended session", "key", key.String())
		return Result[T]{Status: StatusDisabled}
	}
	if err := c.store.Set(key, data); err != nil {
		c.logger.Error("Failed to cache query result", "key", key.String(), "error", err)
	}
	return Result[T]{Status: StatusSuccess, Data: data, UpdatedAt: c.store.Now()}
}

// sameSession reports whether the session that issued token is still the
// current one. Renewal keeps the session id; sign-out and sign-in do not.
func (c *Client) sameSession(token *models.TokenDetails) bool {
	current := c.tokens.Token()
	return current != nil && current.SessionID == token.SessionID
}

// Profile fetches the signed-in user
func (c *Client) Profile(ctx context.Context, opts ...QueryOption) Result[*models.User] {
	return fetch(ctx, c, ProfileKey, opts, func(ctx context.Context, token string) (*models.User, error) {
		return c.backend.Profile(ctx, token)
	})
}

// Project fetches a project with its current deployment
func (c *Client) Project(ctx context.Context, subdomain string, opts ...QueryOption) Result[*models.ProjectWithDeployment] {
	return fetch(ctx, c, ProjectKey(subdomain), opts, func(ctx context.Context, token string) (*models.ProjectWithDeployment, error) {
		return c.backend.GetProject(ctx, token, subdomain)
	})
}

// Deployments fetches the deployments of a project
func (c *Client) Deployments(ctx context.Context, subdomain string, opts ...QueryOption) Result[[]models.Deployment] {
	return fetch(ctx, c, DeploymentsKey(subdomain), opts, func(ctx context.Context, token string) ([]models.Deployment, error) {
		return c.backend.ListDeployments(ctx, token, subdomain)
	})
}

// Deployment fetches one deployment with its logs
func (c *Client) Deployment(ctx context.Context, id string, opts ...QueryOption) Result[*models.DeploymentWithLogs] {
	return fetch(ctx, c, DeploymentKey(id), opts, func(ctx context.Context, token string) (*models.DeploymentWithLogs, error) {
		return c.backend.GetDeployment(ctx, token, id)
	})
}

// Analytics fetches the request records of a project within r
func (c *Client) Analytics(ctx context.Context, subdomain string, r analytics.Range, opts ...QueryOption) Result[[]models.WebsiteAnalytics] {
	return fetch(ctx, c, AnalyticsKey(subdomain, r), opts, func(ctx context.Context, token string) ([]models.WebsiteAnalytics, error) {
		return c.backend.GetAnalytics(ctx, token, subdomain, r)
	})
}

// Invalidate drops every cached entry under prefix
func (c *Client) Invalidate(prefix cache.Key) {
	if _, err := c.store.RemovePrefix(prefix); err != nil {
		c.logger.Error("Failed to invalidate", "prefix", prefix.String(), "error", err)
	}
}

// CreateProject creates a project through the console and drops every
// cached project list.
func (c *Client) CreateProject(ctx context.Context, name, gitURL string) (*models.Project, error) {
	token := c.tokens.Token()
	if token == nil {
		return nil, session.ErrSignedOut
	}

	project, err := c.console.CreateProject(ctx, token.AccessToken, name, gitURL)
	if err != nil {
		return nil, err
	}

	c.Invalidate(ProjectsPrefix)
	return project, nil
}

// DeleteProject deletes a project and drops every cached project list
func (c *Client) DeleteProject(ctx context.Context, projectID string) error {
	token := c.tokens.Token()
	if token == nil {
		return session.ErrSignedOut
	}

	if err := c.backend.DeleteProject(ctx, token.AccessToken, projectID); err != nil {
		return err
	}

	c.Invalidate(ProjectsPrefix)
	c.Invalidate(ProjectPrefix)
	return nil
}

// Deploy queues a deployment of project and drops its cached deployments
func (c *Client) Deploy(ctx context.Context, project *models.Project, userEnv string) (*models.CreateDeploymentResponse, error) {
	token := c.tokens.Token()
	if token == nil {
		return nil, session.ErrSignedOut
	}

	resp, err := c.backend.Deploy(ctx, token.AccessToken, project.ID, userEnv)
	if err != nil {
		return nil, err
	}

	c.Invalidate(DeploymentsKey(project.SubDomain))
	c.Invalidate(ProjectKey(project.SubDomain))
	return resp, nil
}

var _ Backend = (*api.Client)(nil)
var _ Console = (*api.ConsoleClient)(nil)
