package security

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	// Safe patterns for validation
	gitURLPattern    = regexp.MustCompile(`^https://github\.com/[a-zA-Z0-9_-]+/[a-zA-Z0-9_.-]+(?:\.git)?$`)
	subdomainPattern = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?$`)
	envKeyPattern    = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// ValidateGitURL ensures URL is a plain HTTPS GitHub repository URL.
func ValidateGitURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if u.Scheme != "https" || u.Host != "github.com" {
		return fmt.Errorf("only GitHub HTTPS URLs allowed, got %s://%s", u.Scheme, u.Host)
	}

	if !gitURLPattern.MatchString(rawURL) {
		return fmt.Errorf("URL contains invalid characters or format")
	}

	return nil
}

// SplitGitURL returns the owner and repository of a validated GitHub URL
func SplitGitURL(rawURL string) (owner, repo string, err error) {
	if err := ValidateGitURL(rawURL); err != nil {
		return "", "", err
	}
	path := strings.TrimSuffix(strings.TrimPrefix(rawURL, "https://github.com/"), ".git")
	parts := strings.Split(path, "/")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid owner/repo format: %s", path)
	}
	return parts[0], parts[1], nil
}

// ValidateSubdomain ensures a project subdomain is a single DNS label.
// Subdomains are interpolated into request paths.
func ValidateSubdomain(subdomain string) error {
	if subdomain == "" {
		return fmt.Errorf("subdomain cannot be empty")
	}
	if !subdomainPattern.MatchString(subdomain) {
		return fmt.Errorf("subdomain contains invalid characters (only a-z, 0-9, - allowed)")
	}
	return nil
}

// ValidateResourceID ensures an identifier is a UUID before it is
// interpolated into a request path.
func ValidateResourceID(kind, id string) error {
	if id == "" {
		return fmt.Errorf("%s id cannot be empty", kind)
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid %s id %q", kind, id)
	}
	return nil
}

// ValidateEnvKey ensures a user environment variable name is a valid
// shell identifier.
func ValidateEnvKey(key string) error {
	if key == "" {
		return fmt.Errorf("environment variable name cannot be empty")
	}
	if !envKeyPattern.MatchString(key) {
		return fmt.Errorf("invalid environment variable name %q", key)
	}
	return nil
}
