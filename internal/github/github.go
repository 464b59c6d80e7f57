// Package github checks that a project's repository exists before the
// project is created.
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"launchpad/internal/security"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// ErrRepoNotFound means the repository does not exist or is not visible
// with the configured token.
var ErrRepoNotFound = errors.New("repository not found")

// Repo is what the check learned about a repository
type Repo struct {
	FullName      string
	DefaultBranch string
	Private       bool
	HTMLURL       string
}

// RepoChecker looks repositories up through the GitHub API
type RepoChecker struct {
	client *github.Client
	logger *slog.Logger
}

// NewRepoChecker creates a checker. An empty token uses anonymous
// access, which only sees public repositories.
func NewRepoChecker(token string, logger *slog.Logger) *RepoChecker {
	return &RepoChecker{
		client: newClient(token),
		logger: logger.With("component", "github"),
	}
}

func newClient(token string) *github.Client {
	if token == "" {
		return github.NewClient(nil)
	}

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(context.Background(), ts)

	return github.NewClient(tc)
}

// SetBaseURL points the checker at another API root
func (c *RepoChecker) SetBaseURL(rawURL string) error {
	if !strings.HasSuffix(rawURL, "/") {
		rawURL += "/"
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid GitHub API URL: %w", err)
	}
	c.client.BaseURL = u
	return nil
}

// Check resolves gitURL to a repository
func (c *RepoChecker) Check(ctx context.Context, gitURL string) (*Repo, error) {
	owner, name, err := security.SplitGitURL(gitURL)
	if err != nil {
		return nil, err
	}

	repo, resp, err := c.client.Repositories.Get(ctx, owner, name)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%s/%s: %w", owner, name, ErrRepoNotFound)
		}
		c.logger.Warn("Repository lookup failed", "owner", owner, "repo", name, "error", err)
		return nil, fmt.Errorf("looking up %s/%s: %w", owner, name, err)
	}

	return &Repo{
		FullName:      repo.GetFullName(),
		DefaultBranch: repo.GetDefaultBranch(),
		Private:       repo.GetPrivate(),
		HTMLURL:       repo.GetHTMLURL(),
	}, nil
}
