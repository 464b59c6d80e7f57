package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"launchpad/internal/actions"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	// HTTP server timeouts
	HTTPReadTimeout  = 10 * time.Second
	HTTPWriteTimeout = 35 * time.Second
	HTTPIdleTimeout  = 60 * time.Second

	// Request timeout for middleware; longer than the backend client timeout
	RequestTimeout = 32 * time.Second

	// Rate limiting - requests per minute
	GlobalRateLimit     = 120
	CredentialRateLimit = 10 // signup, signin, verify

	ShutdownTimeout = 10 * time.Second
)

// Server is the console server
type Server struct {
	Actions       *actions.Actions
	Logger        *slog.Logger
	SecureCookies bool
	TestMode      bool // disables rate limiting
}

// NewServer creates a new server instance
func NewServer(a *actions.Actions, secureCookies bool, logger *slog.Logger, testMode bool) *Server {
	return &Server{
		Actions:       a,
		Logger:        logger,
		SecureCookies: secureCookies,
		TestMode:      testMode,
	}
}

// Router creates and configures the HTTP router
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(RequestTimeout))

	// Logging middleware
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				s.Logger.Info("http_request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"request_id", middleware.GetReqID(r.Context()),
					"duration_ms", time.Since(start).Milliseconds())
			}()

			next.ServeHTTP(ww, r)
		})
	})

	if !s.TestMode {
		r.Use(NewRateLimitMiddleware("global", GlobalRateLimit, s.Logger))
	}

	r.Get("/health", s.HandleHealth)
	r.Get("/api/refresh", s.HandleRefresh)

	r.Route("/actions", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			// Credential actions get a stricter limit
			if !s.TestMode {
				r.Use(NewRateLimitMiddleware("credentials", CredentialRateLimit, s.Logger))
			}
			r.Post("/signup", s.HandleSignUp)
			r.Post("/signin", s.HandleSignIn)
			r.Post("/verify", s.HandleVerify)
		})

		r.Post("/logout", s.HandleLogout)
		r.Post("/projects", s.HandleCreateProject)
		r.Get("/profile", s.HandleProfile)
	})

	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	s.Logger.Info("Starting server", "addr", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  HTTPReadTimeout,
		WriteTimeout: HTTPWriteTimeout,
		IdleTimeout:  HTTPIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.Logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
