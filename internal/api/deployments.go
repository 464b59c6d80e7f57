package api

import (
	"context"
	"net/http"

	"launchpad/internal/models"
	"launchpad/internal/security"
)

// ListDeployments returns the deployments of a project
func (c *Client) ListDeployments(ctx context.Context, token, subdomain string) ([]models.Deployment, error) {
	const op = "get deployments"
	if err := security.ValidateSubdomain(subdomain); err != nil {
		return nil, c.invalid(op, err)
	}

	var out []models.Deployment
	if err := c.do(ctx, request{
		op:     op,
		method: http.MethodGet,
		path:   joinPath(c.endpoints.GetDeployments, subdomain),
		token:  token,
	}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetDeployment returns one deployment with its logs
func (c *Client) GetDeployment(ctx context.Context, token, deploymentID string) (*models.DeploymentWithLogs, error) {
	const op = "get deployment"
	if err := security.ValidateResourceID("deployment", deploymentID); err != nil {
		return nil, c.invalid(op, err)
	}

	var out models.DeploymentWithLogs
	if err := c.do(ctx, request{
		op:     op,
		method: http.MethodGet,
		path:   joinPath(c.endpoints.GetDeployment, deploymentID),
		token:  token,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Deploy queues a new deployment of a project. userEnv is the JSON
// encoded environment passed to the build.
func (c *Client) Deploy(ctx context.Context, token, projectID, userEnv string) (*models.CreateDeploymentResponse, error) {
	const op = "deploy project"
	if err := security.ValidateResourceID("project", projectID); err != nil {
		return nil, c.invalid(op, err)
	}

	var out models.CreateDeploymentResponse
	if err := c.do(ctx, request{
		op:     op,
		method: http.MethodPost,
		path:   joinPath(c.endpoints.Deploy, projectID),
		token:  token,
		body:   map[string]string{"user_env": userEnv},
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
