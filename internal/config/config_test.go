package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validYAML = `backend_endpoint: http://localhost:8080
endpoints:
  login: /api/v1/auth/login
  signup: /api/v1/auth/register
  logout: /api/v1/auth/logout
  profile: /api/v1/user/me
  refresh: /api/v1/auth/refresh
  verify: /api/v1/create/token
  get_project: /api/v1/project
  all_projects: /api/v1/projects
  create_project: /api/v1/project/create
  delete_project: /api/v1/project/delete
  get_deployments: /api/v1/deployments
  get_deployment: /api/v1/deployment
  analytics: /api/v1/project/analytics
  deploy: /api/v1/deploy/create
renew_interval_seconds: 30
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoad_ValidFile(t *testing.T) {
	path := writeConfig(t, validYAML)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if problems := cfg.Validate(); len(problems) != 0 {
		t.Fatalf("Expected valid config, got problems: %v", problems)
	}

	if cfg.Endpoints.Login != "/api/v1/auth/login" {
		t.Errorf("Expected login endpoint from file, got %q", cfg.Endpoints.Login)
	}
	if cfg.RenewInterval() != 30*time.Second {
		t.Errorf("Expected renew interval 30s, got %v", cfg.RenewInterval())
	}
	if cfg.ConsoleURL != DefaultConsoleURL {
		t.Errorf("Expected default console URL, got %q", cfg.ConsoleURL)
	}
	if cfg.Source != path {
		t.Errorf("Expected source %q, got %q", path, cfg.Source)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, validYAML)
	t.Setenv("BACKEND_ENDPOINT", "https://api.example.com")
	t.Setenv("LAUNCHPAD_PAGE_SIZE", "24")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.BackendURL != "https://api.example.com" {
		t.Errorf("Expected env to override backend, got %q", cfg.BackendURL)
	}
	if cfg.PageSize != 24 {
		t.Errorf("Expected page size 24, got %d", cfg.PageSize)
	}
}

func TestLoad_InvalidIntegerEnv(t *testing.T) {
	path := writeConfig(t, validYAML)
	t.Setenv("LAUNCHPAD_PORT", "eighty")

	if _, err := Load(path); err == nil {
		t.Error("Expected error for non-integer port")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "backend_endpoint: [unclosed")

	if _, err := Load(path); err == nil {
		t.Error("Expected error for malformed YAML")
	}
}

func TestValidate_MissingEndpointsFailFast(t *testing.T) {
	cfg := NewConfig()
	cfg.StorePath = filepath.Join(t.TempDir(), "cookies.db")

	problems := cfg.Validate()
	joined := strings.Join(problems, "\n")

	for _, key := range []string{"BACKEND_ENDPOINT", "LOGIN_ENDPOINT", "REFRESH_ENDPOINT", "ANALYTICS_ENDPOINT", "DEPLOY_ENDPOINT"} {
		if !strings.Contains(joined, key) {
			t.Errorf("Expected problem for %s, got:\n%s", key, joined)
		}
	}

	if err := cfg.Check(); err == nil {
		t.Error("Expected Check() to fail")
	}
}

func TestValidate_BadValues(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	cfg.StorePath = filepath.Join(t.TempDir(), "cookies.db")
	cfg.BackendURL = "ftp://example.com"
	cfg.Port = 0
	cfg.PageSize = -1

	problems := cfg.Validate()
	if len(problems) != 3 {
		t.Errorf("Expected 3 problems, got %d: %v", len(problems), problems)
	}
}

func TestSetFromFlags(t *testing.T) {
	cfg := NewConfig()
	cfg.SetFromFlags(map[string]string{
		"backend": "http://backend:9000",
		"port":    "4000",
		"console": "",
	})

	if cfg.BackendURL != "http://backend:9000" {
		t.Errorf("Expected backend from flag, got %q", cfg.BackendURL)
	}
	if cfg.Port != 4000 {
		t.Errorf("Expected port 4000, got %d", cfg.Port)
	}
	if cfg.ConsoleURL != DefaultConsoleURL {
		t.Errorf("Empty flag should not override console URL, got %q", cfg.ConsoleURL)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("LAUNCHPAD_TEST_DOTENV=from-file\n"), 0644); err != nil {
		t.Fatalf("Failed to write .env: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("LAUNCHPAD_TEST_DOTENV") })

	if err := LoadDotEnv(envPath); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv("LAUNCHPAD_TEST_DOTENV"); got != "from-file" {
		t.Errorf("Expected value from .env, got %q", got)
	}

	if err := LoadDotEnv(filepath.Join(dir, "missing.env")); err != nil {
		t.Errorf("Missing .env should not be an error, got %v", err)
	}
}
