package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"

	"github.com/badgekit/badgerules/eventschema"
	"github.com/badgekit/badgerules/internal/logger"
	"github.com/badgekit/badgerules/rules"
)

// Config is read from the environment.
type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
	Port        string `env:"PORT" envDefault:"8080"`
}

type Server struct {
	db       *sql.DB
	service  *rules.Service
	registry *eventschema.Registry
	router   *chi.Mux
}

func NewServer(databaseURL string) (*Server, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewServerWithDB(db)
}

// NewServerWithDB wires the server over an existing connection; used by
// the integration tests.
func NewServerWithDB(db *sql.DB) (*Server, error) {
	registry := eventschema.NewRegistry(db)
	if err := registry.LoadAll(); err != nil {
		return nil, fmt.Errorf("failed to load event schemas: %w", err)
	}
	slog.Info("loaded event schemas", "eventTypes", registry.EventTypes())

	s := &Server{
		db:       db,
		service:  rules.NewService(rules.NewPostgresRuleStore(db), registry),
		registry: registry,
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/api/v1/health", s.handleHealth)

	r.Route("/api/v1/rules", func(r chi.Router) {
		r.Get("/", s.handleListRules)
		r.Post("/", s.handleCreateRule)

		r.Route("/{ruleId}", func(r chi.Router) {
			r.Get("/", s.handleGetRule)
			r.Put("/", s.handleUpdateRule)
			r.Delete("/", s.handleDeleteRule)
			r.Get("/canvas", s.handleGetRuleCanvas)
		})
	})

	r.Post("/api/v1/canvas/translate", s.handleTranslateCanvas)

	r.Route("/api/v1/schemas/{eventType}", func(r chi.Router) {
		r.Get("/", s.handleGetSchema)
		r.Put("/", s.handlePutSchema)
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func main() {
	logger.Setup("badgerules")

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		slog.Error("failed to parse configuration", "error", err)
		os.Exit(1)
	}

	server, err := NewServer(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create server", "error", err)
		os.Exit(1)
	}
	defer server.db.Close()

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	if err := logger.Shutdown(ctx); err != nil {
		slog.Error("logger shutdown error", "error", err)
	}

	slog.Info("server stopped")
}
