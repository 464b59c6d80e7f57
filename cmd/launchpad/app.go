package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"

	"launchpad/internal/api"
	"launchpad/internal/cache"
	"launchpad/internal/config"
	"launchpad/internal/models"
	"launchpad/internal/queries"
	"launchpad/internal/session"
	"launchpad/internal/store"
)

// app wires the client side: config, the cookie jar standing in for the
// browser, the backend and console clients, the session and the queries.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	jar     *store.Jar
	backend *api.Client
	console *api.ConsoleClient
	cache   *cache.Store
	session *session.Cache
	queries *queries.Client
}

// loadConfig applies config file, environment and global flags
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	cfg.SetFromFlags(map[string]string{
		"backend": backendURL,
		"console": consoleURL,
		"store":   storePath,
	})

	return cfg, nil
}

// clientLogger logs text to stderr; warnings only unless --verbose
func clientLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Check(); err != nil {
		return nil, err
	}

	logger := clientLogger()

	jar, err := store.Open(cfg.StorePath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open cookie store: %w", err)
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		jar:     jar,
		backend: api.NewClient(cfg, logger),
		console: api.NewConsoleClient(cfg, jar, logger),
		cache:   cache.New(),
	}

	a.session, err = session.New(a.cache, a.console,
		session.WithInterval(cfg.RenewInterval()),
		session.WithDependents(queries.DependentKeys()...),
		session.WithLogger(logger),
	)
	if err != nil {
		jar.Close()
		return nil, err
	}

	a.queries = queries.NewClient(a.cache, a.session, a.backend, a.console, logger)
	return a, nil
}

// Close stops background renewal and closes the cookie store
func (a *app) Close() {
	a.session.Stop()
	if err := a.jar.Close(); err != nil {
		a.logger.Warn("Failed to close cookie store", "error", err)
	}
}

// requireSession returns a token or tells the user to sign in, the
// command-line version of redirecting to the login page.
func (a *app) requireSession(ctx context.Context) (*models.TokenDetails, error) {
	token, err := a.session.Require(ctx)
	if err != nil {
		return nil, fmt.Errorf("not signed in, run 'launchpad login' first")
	}
	return token, nil
}

// refreshCookie reports the stored refresh cookie without exposing its value
func (a *app) refreshCookie(ctx context.Context) (*store.Cookie, error) {
	u, err := url.Parse(a.cfg.ConsoleURL)
	if err != nil {
		return nil, err
	}
	return a.jar.Get(ctx, store.HostKey(u), "refresh_token")
}

// withApp runs fn with a fully wired app
func withApp(fn func(a *app) error) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
