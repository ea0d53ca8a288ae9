// Package api implements the HTTP layer for the hazard query service.
// Handlers are methods on *Server. Each handler file is responsible for one
// route group and only imports the dependencies it actually uses.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nyashahama/hazard-query-backend/internal/orchestrator"
)

// Asker answers one question. Satisfied by *orchestrator.Orchestrator.
type Asker interface {
	Ask(ctx context.Context, question string) (*orchestrator.Answer, error)
}

// Pinger reports whether the database is reachable. Satisfied by
// *store.Store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds values read from environment variables at startup.
type Config struct {
	// Env is "production", "staging", or "development".
	Env string

	// AskTimeout bounds one ask, from intent extraction to the last chunk.
	AskTimeout time.Duration

	// MaxQueryLength is the longest question accepted, in characters.
	MaxQueryLength int
}

const (
	defaultAskTimeout     = 120 * time.Second
	defaultMaxQueryLength = 2000
)

// Server holds all shared dependencies.
type Server struct {
	asker   Asker
	db      Pinger
	metrics http.Handler

	cfg    Config
	logger *slog.Logger
}

// NewServer constructs the Server and wires the chi router. metrics may be
// nil, in which case the default Prometheus registry is served.
func NewServer(
	asker Asker,
	db Pinger,
	metrics http.Handler,
	cfg Config,
	logger *slog.Logger,
) http.Handler {
	if cfg.AskTimeout <= 0 {
		cfg.AskTimeout = defaultAskTimeout
	}
	if cfg.MaxQueryLength <= 0 {
		cfg.MaxQueryLength = defaultMaxQueryLength
	}
	if metrics == nil {
		metrics = promhttp.Handler()
	}

	s := &Server{
		asker:   asker,
		db:      db,
		metrics: metrics,
		cfg:     cfg,
		logger:  logger,
	}

	return s.routes()
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	// ── Global middleware ─────────────────────────────────────────────────────
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)

	// ── Health ────────────────────────────────────────────────────────────────
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(10 * time.Second))
		r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		r.Get("/readyz", s.handleReady)
		r.Handle("/metrics", s.metrics)
	})

	// ── API ───────────────────────────────────────────────────────────────────
	// The ask route streams, so it carries its own deadline instead of the
	// Timeout middleware.
	r.Route("/api", func(r chi.Router) {
		r.Post("/ask", s.handleAsk)
	})

	return r
}
