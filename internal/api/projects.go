package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"launchpad/internal/analytics"
	"launchpad/internal/models"
	"launchpad/internal/security"
)

// CreateProjectInput is the body of a project creation
type CreateProjectInput struct {
	Name   string `json:"project_name"`
	GitURL string `json:"github_url"`
}

// ListProjects returns one page of the user's projects filtered by name
func (c *Client) ListProjects(ctx context.Context, token string, limit, offset int, name string) ([]models.Project, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("offset", strconv.Itoa(offset))
	query.Set("name", name)

	var out []models.Project
	if err := c.do(ctx, request{
		op:     "get projects",
		method: http.MethodGet,
		path:   c.endpoints.AllProjects,
		token:  token,
		query:  query,
	}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateProject registers a project from a GitHub repository
func (c *Client) CreateProject(ctx context.Context, token string, in CreateProjectInput) (*models.Project, error) {
	var out models.Project
	if err := c.do(ctx, request{
		op:     "create project",
		method: http.MethodPost,
		path:   c.endpoints.CreateProject,
		token:  token,
		body:   in,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteProject removes a project by id
func (c *Client) DeleteProject(ctx context.Context, token, projectID string) error {
	const op = "delete project"
	if err := security.ValidateResourceID("project", projectID); err != nil {
		return c.invalid(op, err)
	}
	return c.do(ctx, request{
		op:     op,
		method: http.MethodDelete,
		path:   joinPath(c.endpoints.DeleteProject, projectID),
		token:  token,
	}, nil)
}

// GetProject returns a project with its current deployment and logs
func (c *Client) GetProject(ctx context.Context, token, subdomain string) (*models.ProjectWithDeployment, error) {
	const op = "get project"
	if err := security.ValidateSubdomain(subdomain); err != nil {
		return nil, c.invalid(op, err)
	}

	var out models.ProjectWithDeployment
	if err := c.do(ctx, request{
		op:     op,
		method: http.MethodGet,
		path:   joinPath(c.endpoints.GetProject, subdomain),
		token:  token,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetAnalytics returns the request records of a project, optionally
// limited to a date range.
func (c *Client) GetAnalytics(ctx context.Context, token, subdomain string, r analytics.Range) ([]models.WebsiteAnalytics, error) {
	const op = "get analytics"
	if err := security.ValidateSubdomain(subdomain); err != nil {
		return nil, c.invalid(op, err)
	}

	var out []models.WebsiteAnalytics
	if err := c.do(ctx, request{
		op:     op,
		method: http.MethodGet,
		path:   joinPath(c.endpoints.Analytics, subdomain),
		token:  token,
		query:  r.Values(),
	}, &out); err != nil {
		return nil, err
	}
	return out, nil
}
