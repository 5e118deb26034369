// Package server wires the dependency graph and the route table, and owns
// the HTTP server lifecycle. main.go stays minimal: read config, build the
// server, start it.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/opensit/opensit/internal/auth"
	"github.com/opensit/opensit/internal/handler"
	"github.com/opensit/opensit/internal/middleware"
	sqliteRepo "github.com/opensit/opensit/internal/repository/sqlite"
	"github.com/opensit/opensit/internal/service"
)

// Config holds server configuration, loaded from the environment in main.
type Config struct {
	Port   int
	DBPath string

	// JWTSecret signs session tokens. Required.
	JWTSecret string

	// Timezone is the journal day boundary (IANA name, e.g. "Europe/London").
	// Empty means UTC. Streaks and per-day stats bucket entries by calendar
	// day in this location.
	Timezone string

	// GitHub OAuth is optional; with empty credentials the routes are not
	// registered and only password auth is available.
	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string
}

// Server owns the router and the database connection; the connection is
// closed during graceful shutdown.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New builds the full dependency graph:
//
//	sqlite.DB -> repositories -> Visibility/Journal/Sit/User services -> handlers -> routes
//
// Each layer receives interfaces, not concrete types, so tests can swap in
// mocks at any seam.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT secret is required")
	}

	loc := time.UTC
	if cfg.Timezone != "" {
		var err error
		if loc, err = time.LoadLocation(cfg.Timezone); err != nil {
			return nil, fmt.Errorf("loading timezone %q: %w", cfg.Timezone, err)
		}
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(loc); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

func (s *Server) setupRoutes(loc *time.Location) error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService()

	// One pool behind three stores, one per repository interface.
	visibility := service.NewVisibility(s.db.Users, s.db.Relationships)
	journals := service.NewJournalService(s.db.Sits, visibility, loc, s.logger)
	sits := service.NewSitService(s.db.Sits, s.db.Users, visibility, s.logger)
	users := service.NewUserService(s.db.Users, s.db.Relationships, passwords, tokens, s.logger)

	var github *auth.GitHubProvider
	if s.config.GitHubClientID != "" && s.config.GitHubClientSecret != "" {
		github = auth.NewGitHubProvider(
			s.config.GitHubClientID,
			s.config.GitHubClientSecret,
			s.config.GitHubCallbackURL,
		)
	}

	authHandler := handler.NewAuthHandler(users, github, s.logger)
	sitHandler := handler.NewSitHandler(sits, s.logger)
	userHandler := handler.NewUserHandler(users, journals, s.logger)

	if github != nil {
		s.router.Get("/auth/github/login", authHandler.HandleGitHubLogin)
		s.router.Get("/auth/github/callback", authHandler.HandleGitHubCallback)
	} else {
		s.logger.Warn("GitHub OAuth not configured — only password auth available")
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/signup", authHandler.HandleSignup)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/logout", authHandler.HandleLogout)

		// Public journal surfaces: anyone may ask, the visibility rules
		// decide what each viewer actually sees.
		r.Group(func(r chi.Router) {
			r.Use(auth.OptionalAuth(tokens))
			r.Get("/sits/{id}", sitHandler.HandleGet)
			r.Get("/users/{username}", userHandler.HandleJournal)
			r.Get("/users/{username}/summary", userHandler.HandleSummary)
			r.Get("/users/{username}/followers", userHandler.HandleFollowers)
			r.Get("/users/{username}/following", userHandler.HandleFollowing)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Get("/me", authHandler.HandleMe)
			r.Post("/sits", sitHandler.HandleCreate)
			r.Put("/sits/{id}", sitHandler.HandleUpdate)
			r.Delete("/sits/{id}", sitHandler.HandleDelete)
			r.Post("/users/{username}/follow", userHandler.HandleFollow)
			r.Delete("/users/{username}/follow", userHandler.HandleUnfollow)
			r.Put("/settings/privacy", userHandler.HandleSetPrivacy)
			r.Put("/settings/selected-users", userHandler.HandleSetSelectedUsers)
		})
	})

	return nil
}

// Start runs the HTTP server until SIGINT/SIGTERM, then drains in-flight
// requests (30s) and closes the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
