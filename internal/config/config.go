package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"launchpad/pkg/fileutil"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	FileName = "launchpad.yaml"

	DefaultConsoleURL           = "http://127.0.0.1:3000"
	DefaultHost                 = "127.0.0.1"
	DefaultPort                 = 3000
	DefaultRenewIntervalSeconds = 60
	DefaultHTTPTimeoutSeconds   = 30
	DefaultPageSize             = 12
)

// Endpoints are the backend paths, relative to BackendURL
type Endpoints struct {
	Login          string `yaml:"login"`
	Signup         string `yaml:"signup"`
	Logout         string `yaml:"logout"`
	Profile        string `yaml:"profile"`
	Refresh        string `yaml:"refresh"`
	Verify         string `yaml:"verify"`
	GetProject     string `yaml:"get_project"`
	AllProjects    string `yaml:"all_projects"`
	CreateProject  string `yaml:"create_project"`
	DeleteProject  string `yaml:"delete_project"`
	GetDeployments string `yaml:"get_deployments"`
	GetDeployment  string `yaml:"get_deployment"`
	Analytics      string `yaml:"analytics"`
	Deploy         string `yaml:"deploy"`
}

// Config holds settings shared by the console server and the client
type Config struct {
	BackendURL string    `yaml:"backend_endpoint"`
	Endpoints  Endpoints `yaml:"endpoints"`

	// Console server
	ConsoleURL    string `yaml:"console_url"`
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	SecureCookies bool   `yaml:"secure_cookies"`
	LogFile       string `yaml:"log_file"`

	// Client
	StorePath            string `yaml:"store_path"`
	RenewIntervalSeconds int    `yaml:"renew_interval_seconds"`
	HTTPTimeoutSeconds   int    `yaml:"http_timeout_seconds"`
	PageSize             int    `yaml:"page_size"`
	GitHubToken          string `yaml:"github_token"`

	// Source is the config file that was loaded, if any
	Source string `yaml:"-"`
}

// NewConfig creates a new config with defaults
func NewConfig() *Config {
	c := &Config{
		ConsoleURL:           DefaultConsoleURL,
		Host:                 DefaultHost,
		Port:                 DefaultPort,
		RenewIntervalSeconds: DefaultRenewIntervalSeconds,
		HTTPTimeoutSeconds:   DefaultHTTPTimeoutSeconds,
		PageSize:             DefaultPageSize,
	}
	if dir, err := fileutil.UserDir(); err == nil {
		c.StorePath = filepath.Join(dir, "cookies.db")
	}
	return c
}

// Load builds a config from defaults, the YAML file, .env and the process
// environment, in that order. An empty path searches the default locations.
// The result is not validated; flags may still be applied on top.
func Load(path string) (*Config, error) {
	c := NewConfig()

	if path == "" {
		path = fileutil.FindConfigOptional(FileName)
	}
	if err := c.LoadFromFile(path); err != nil {
		return nil, err
	}
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	if err := c.LoadFromEnv(); err != nil {
		return nil, err
	}

	return c, nil
}

// LoadFromFile loads config from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	c.Source = path
	return nil
}

// LoadDotEnv exports the variables of a .env file that are not already set.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	if !fileutil.FileExists(path) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// LoadFromEnv overrides values with any set environment variables
func (c *Config) LoadFromEnv() error {
	for key, dst := range c.stringVars() {
		if value := os.Getenv(key); value != "" {
			*dst = value
		}
	}

	for key, dst := range c.intVars() {
		value := os.Getenv(key)
		if value == "" {
			continue
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s must be an integer, got %q", key, value)
		}
		*dst = n
	}

	if value := os.Getenv("LAUNCHPAD_SECURE_COOKIES"); value != "" {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("LAUNCHPAD_SECURE_COOKIES must be a boolean, got %q", value)
		}
		c.SecureCookies = b
	}

	if c.GitHubToken == "" {
		if token := os.Getenv("GH_TOKEN"); token != "" {
			c.GitHubToken = token
		} else if token := os.Getenv("GITHUB_TOKEN"); token != "" {
			c.GitHubToken = token
		}
	}

	return nil
}

// SetFromFlags updates config from command line flags. Empty values are
// ignored.
func (c *Config) SetFromFlags(flags map[string]string) {
	for key, value := range flags {
		if value == "" {
			continue
		}
		switch key {
		case "backend":
			c.BackendURL = value
		case "console":
			c.ConsoleURL = value
		case "host":
			c.Host = value
		case "store":
			c.StorePath = value
		case "log":
			c.LogFile = value
		case "github-token":
			c.GitHubToken = value
		case "port":
			if n, err := strconv.Atoi(value); err == nil {
				c.Port = n
			}
		}
	}
}

// stringVars maps environment variable names to the fields they set
func (c *Config) stringVars() map[string]*string {
	return map[string]*string{
		"BACKEND_ENDPOINT":         &c.BackendURL,
		"LOGIN_ENDPOINT":           &c.Endpoints.Login,
		"SIGNUP_ENDPOINT":          &c.Endpoints.Signup,
		"LOGOUT_ENDPOINT":          &c.Endpoints.Logout,
		"PROFILE_ENDPOINT":         &c.Endpoints.Profile,
		"REFRESH_ENDPOINT":         &c.Endpoints.Refresh,
		"VERIFY_ENDPOINT":          &c.Endpoints.Verify,
		"GET_PROJECT_ENDPOINT":     &c.Endpoints.GetProject,
		"ALL_PROJECT_ENDPOINT":     &c.Endpoints.AllProjects,
		"CREATE_PROJECT_ENDPOINT":  &c.Endpoints.CreateProject,
		"DELETE_PROJECT_ENDPOINT":  &c.Endpoints.DeleteProject,
		"GET_DEPLOYMENTS_ENDPOINT": &c.Endpoints.GetDeployments,
		"GET_DEPLOYMENT_ENDPOINT":  &c.Endpoints.GetDeployment,
		"ANALYTICS_ENDPOINT":       &c.Endpoints.Analytics,
		"DEPLOY_ENDPOINT":          &c.Endpoints.Deploy,
		"LAUNCHPAD_CONSOLE_URL":    &c.ConsoleURL,
		"LAUNCHPAD_HOST":           &c.Host,
		"LAUNCHPAD_STORE_PATH":     &c.StorePath,
		"LAUNCHPAD_LOG_FILE":       &c.LogFile,
	}
}

func (c *Config) intVars() map[string]*int {
	return map[string]*int{
		"LAUNCHPAD_PORT":                   &c.Port,
		"LAUNCHPAD_RENEW_INTERVAL_SECONDS": &c.RenewIntervalSeconds,
		"LAUNCHPAD_HTTP_TIMEOUT_SECONDS":   &c.HTTPTimeoutSeconds,
		"LAUNCHPAD_PAGE_SIZE":              &c.PageSize,
	}
}

// required lists the settings that must be non-empty, keyed by the
// environment variable that sets them, in a stable order.
func (c *Config) required() []struct {
	key   string
	value string
} {
	return []struct {
		key   string
		value string
	}{
		{"BACKEND_ENDPOINT", c.BackendURL},
		{"LOGIN_ENDPOINT", c.Endpoints.Login},
		{"SIGNUP_ENDPOINT", c.Endpoints.Signup},
		{"LOGOUT_ENDPOINT", c.Endpoints.Logout},
		{"PROFILE_ENDPOINT", c.Endpoints.Profile},
		{"REFRESH_ENDPOINT", c.Endpoints.Refresh},
		{"VERIFY_ENDPOINT", c.Endpoints.Verify},
		{"GET_PROJECT_ENDPOINT", c.Endpoints.GetProject},
		{"ALL_PROJECT_ENDPOINT", c.Endpoints.AllProjects},
		{"CREATE_PROJECT_ENDPOINT", c.Endpoints.CreateProject},
		{"DELETE_PROJECT_ENDPOINT", c.Endpoints.DeleteProject},
		{"GET_DEPLOYMENTS_ENDPOINT", c.Endpoints.GetDeployments},
		{"GET_DEPLOYMENT_ENDPOINT", c.Endpoints.GetDeployment},
		{"ANALYTICS_ENDPOINT", c.Endpoints.Analytics},
		{"DEPLOY_ENDPOINT", c.Endpoints.Deploy},
	}
}

// Validate returns every problem with the configuration
func (c *Config) Validate() []string {
	var problems []string

	for _, r := range c.required() {
		if strings.TrimSpace(r.value) == "" {
			problems = append(problems, fmt.Sprintf("  - %s: missing required value", r.key))
		}
	}

	if c.BackendURL != "" {
		if err := validateBaseURL(c.BackendURL); err != nil {
			problems = append(problems, fmt.Sprintf("  - BACKEND_ENDPOINT: %v", err))
		}
	}
	if err := validateBaseURL(c.ConsoleURL); err != nil {
		problems = append(problems, fmt.Sprintf("  - LAUNCHPAD_CONSOLE_URL: %v", err))
	}

	if c.Port <= 0 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("  - port must be between 1 and 65535, got %d", c.Port))
	}
	if c.RenewIntervalSeconds <= 0 {
		problems = append(problems, fmt.Sprintf("  - renew_interval_seconds must be a positive integer, got %d", c.RenewIntervalSeconds))
	}
	if c.HTTPTimeoutSeconds <= 0 {
		problems = append(problems, fmt.Sprintf("  - http_timeout_seconds must be a positive integer, got %d", c.HTTPTimeoutSeconds))
	}
	if c.PageSize <= 0 {
		problems = append(problems, fmt.Sprintf("  - page_size must be a positive integer, got %d", c.PageSize))
	}
	if c.StorePath == "" {
		problems = append(problems, "  - store_path: missing required value")
	}

	return problems
}

// Check validates the config and joins the problems into one error
func (c *Config) Check() error {
	problems := c.Validate()
	if len(problems) == 0 {
		return nil
	}
	return errors.New("invalid configuration:\n" + strings.Join(problems, "\n"))
}

// RenewInterval is the session renewal period
func (c *Config) RenewInterval() time.Duration {
	return time.Duration(c.RenewIntervalSeconds) * time.Second
}

// HTTPTimeout bounds every outbound request
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// Addr is the console server listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must be an http or https URL, got %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}
