package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"launchpad/internal/actions"
	"launchpad/internal/api"
	"launchpad/internal/server"

	"github.com/spf13/cobra"
)

var (
	serveHost     string
	servePort     int
	serveLogFile  string
	serveTestMode bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the console server",
	Long: `Start the console server.

The console runs the sign-in, sign-up, verification, logout, profile and
project creation actions against the backend, and owns the HTTP-only
refresh cookie used by GET /api/refresh to renew access tokens.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default from config)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (default from config)")
	serveCmd.Flags().StringVar(&serveLogFile, "log", "", "Also write logs to this file")
	serveCmd.Flags().BoolVar(&serveTestMode, "test-mode", os.Getenv("LAUNCHPAD_TEST_MODE") == "1", "Disable rate limiting")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	flags := map[string]string{"host": serveHost, "log": serveLogFile}
	if servePort != 0 {
		flags["port"] = strconv.Itoa(servePort)
	}
	cfg.SetFromFlags(flags)

	// Set up logging
	logger, logFileHandle, err := setupLogging(cfg.LogFile)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	if logFileHandle != nil {
		defer logFileHandle.Close()
	}

	logger.Info("Starting launchpad console", "version", version)

	if cfg.Source != "" {
		logger.Info("Loaded configuration", "config", cfg.Source)
	}
	if err := cfg.Check(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		return err
	}
	if !cfg.SecureCookies {
		logger.Warn("Refresh cookie is not marked Secure; set secure_cookies when serving over HTTPS")
	}

	backend := api.NewClient(cfg, logger)
	srv := server.NewServer(actions.New(backend, logger), cfg.SecureCookies, logger, serveTestMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx, cfg.Addr()); err != nil {
		logger.Error("Server failed", "error", err)
		return fmt.Errorf("server failed: %w", err)
	}

	logger.Info("Server stopped")
	return nil
}

// setupLogging configures slog JSON logging to stdout and, when logPath
// is set, to a file as well. The caller closes the returned file.
func setupLogging(logPath string) (*slog.Logger, *os.File, error) {
	var out io.Writer = os.Stdout
	var file *os.File

	if logPath != "" {
		// Create log directory if needed
		if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		file = f
		out = io.MultiWriter(os.Stdout, file)
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: level,
	})

	return slog.New(handler), file, nil
}
