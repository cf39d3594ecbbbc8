// Package server wires handlers, middleware and routes into the front-end
// HTTP server.
//
// main.go is the composition root: it builds the session store, the API
// client and the services, then hands them to New. The server only knows
// the handler interfaces, so tests can run it against fakes.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Jennorg/red-networking-frontend-sub000/internal/handler"
	"github.com/Jennorg/red-networking-frontend-sub000/internal/middleware"
)

// Config holds server configuration.
type Config struct {
	Port int
	// ShutdownTimeout bounds how long in-flight requests may run after a
	// shutdown signal. Zero means 30s.
	ShutdownTimeout time.Duration
}

// Deps are the already-built collaborators the routes need.
type Deps struct {
	Accounts handler.Accounts
	Catalog  handler.Catalog
	// Metrics is served on /metrics. Nil disables the endpoint.
	Metrics prometheus.Gatherer
	// Closers are closed in reverse order once the server has stopped.
	Closers []io.Closer
}

// CloserFunc adapts a plain function to io.Closer.
type CloserFunc func() error

func (f CloserFunc) Close() error { return f() }

// Server represents the HTTP server and all its dependencies.
type Server struct {
	router *chi.Mux
	config Config
	deps   Deps
	logger *slog.Logger
}

// New creates a Server and registers every route.
func New(cfg Config, deps Deps, logger *slog.Logger) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		deps:   deps,
		logger: logger,
	}
	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures middleware and routes.
//
//	GET    /healthz
//	GET    /metrics
//	GET    /api/session                          session snapshot
//	POST   /api/session                          login
//	DELETE /api/session                          logout
//	POST   /api/register
//	POST   /api/password/forgot
//	POST   /api/password/reset
//	GET    /api/projects?page=N
//	GET    /api/projects/{id}
//	GET    /api/ranking?page=N
//	PUT    /api/users/{id}/role                  (session required)
//	DELETE /api/users/{id}                       (session required)
//	DELETE /api/projects/{id}                    (session required)
//	POST   /api/projects/{id}/evaluations        (session required)
//	GET    /api/projects/{id}/evaluations/draft  (session required)
//	DELETE /api/projects/{id}/evaluations/draft  (session required)
//
// Middleware runs in the order added: RequestID first so the logger and
// the outbound API calls see the same id.
func (s *Server) setupRoutes() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	s.router.Get("/healthz", s.handleHealth)
	if s.deps.Metrics != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.deps.Metrics, promhttp.HandlerOpts{}))
	}

	sessionHandler := handler.NewSessionHandler(s.deps.Accounts, s.logger)
	catalogHandler := handler.NewCatalogHandler(s.deps.Catalog, s.logger)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/session", sessionHandler.HandleGet)
		r.Post("/session", sessionHandler.HandleLogin)
		r.Delete("/session", sessionHandler.HandleLogout)
		r.Post("/register", sessionHandler.HandleRegister)
		r.Post("/password/forgot", sessionHandler.HandleForgotPassword)
		r.Post("/password/reset", sessionHandler.HandleResetPassword)

		r.Get("/projects", catalogHandler.HandleProjects)
		r.Get("/projects/{id}", catalogHandler.HandleProject)
		r.Get("/ranking", catalogHandler.HandleRanking)

		// Everything below acts on behalf of the logged-in user.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSession(s.deps.Accounts))

			r.Put("/users/{id}/role", sessionHandler.HandleChangeRole)
			r.Delete("/users/{id}", sessionHandler.HandleDeleteUser)

			r.Delete("/projects/{id}", catalogHandler.HandleDeleteProject)
			r.Post("/projects/{id}/evaluations", catalogHandler.HandleEvaluate)
			r.Get("/projects/{id}/evaluations/draft", catalogHandler.HandleGetDraft)
			r.Delete("/projects/{id}/evaluations/draft", catalogHandler.HandleDiscardDraft)
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, `{"status":"ok"}`)
}

// Start serves until SIGINT/SIGTERM, then shuts down gracefully and closes
// the Closers.
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

// Run serves until ctx is cancelled or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	defer s.closeAll()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}
	return nil
}

func (s *Server) closeAll() {
	for i := len(s.deps.Closers) - 1; i >= 0; i-- {
		if err := s.deps.Closers[i].Close(); err != nil {
			s.logger.Error("closing resource failed", slog.String("error", err.Error()))
		}
	}
}
