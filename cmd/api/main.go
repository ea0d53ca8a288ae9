package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // postgres driver
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nyashahama/hazard-query-backend/internal/ai"
	"github.com/nyashahama/hazard-query-backend/internal/api"
	"github.com/nyashahama/hazard-query-backend/internal/config"
	"github.com/nyashahama/hazard-query-backend/internal/geocode"
	"github.com/nyashahama/hazard-query-backend/internal/intent"
	"github.com/nyashahama/hazard-query-backend/internal/observability"
	"github.com/nyashahama/hazard-query-backend/internal/orchestrator"
	"github.com/nyashahama/hazard-query-backend/internal/schemadoc"
	"github.com/nyashahama/hazard-query-backend/internal/sqlguard"
	"github.com/nyashahama/hazard-query-backend/internal/store"
	"github.com/nyashahama/hazard-query-backend/internal/summary"
)

func main() {
	// ── Logger ────────────────────────────────────────────────────────────────
	// JSON in production, pretty text in development.
	logger := observability.NewLogger(os.Stdout, os.Getenv("ENV"))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	// ── Config ────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger.Info("config loaded",
		"env", cfg.Env,
		"port", cfg.Port,
		"primary_path", cfg.QueryPrimaryPath,
		"require_limit", cfg.SQLRequireLimit,
	)

	primaryPath, err := orchestrator.ParsePrimaryPath(cfg.QueryPrimaryPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// ── Metrics ───────────────────────────────────────────────────────────────
	metrics := observability.NewMetrics(nil)

	// ── Database ──────────────────────────────────────────────────────────────
	pool, err := openDB(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer pool.Close()
	logger.Info("database connected")

	st := store.New(pool, store.Options{
		MaxRows:          cfg.MaxRows,
		StatementTimeout: cfg.QueryTimeout,
	}, logger)

	// ── AI ────────────────────────────────────────────────────────────────────
	// OpenAI → DeepSeek → Anthropic, skipping any provider without a key.
	// Config validation guarantees at least one is set.
	var openAI, deepSeek, anthropic ai.Generator
	if cfg.OpenAIAPIKey != "" {
		openAI = ai.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL)
	}
	if cfg.DeepSeekAPIKey != "" {
		deepSeek = ai.NewDeepSeekClient(cfg.DeepSeekAPIKey, cfg.DeepSeekModel)
	}
	if cfg.AnthropicAPIKey != "" {
		anthropic = ai.NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	}
	generator := ai.NewFallbackGenerator(
		openAI,
		ai.NewFallbackGenerator(deepSeek, anthropic, logger),
		logger,
	)
	if generator == nil {
		return errors.New("ai: no generation provider configured")
	}
	logger.Info("ai: providers configured",
		"openai", openAI != nil,
		"deepseek", deepSeek != nil,
		"anthropic", anthropic != nil,
	)

	// ── Geocoding ─────────────────────────────────────────────────────────────
	var geocoder geocode.Geocoder
	if cfg.MapboxToken != "" {
		mapbox := geocode.NewMapboxClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		geocoder = geocode.NewCachedGeocoder(mapbox, cfg.GeocodeCacheTTL, metrics)
		logger.Info("geocoding: mapbox enabled", "cache_ttl", cfg.GeocodeCacheTTL)
	} else {
		logger.Warn("geocoding: MAPBOX_TOKEN not set, city queries disabled")
	}

	// ── Intent ────────────────────────────────────────────────────────────────
	var recognizer intent.EntityRecognizer = intent.PatternRecognizer{}
	if cfg.NERBackend == "prose" {
		recognizer = intent.NewProseRecognizer()
		logger.Info("intent: prose model loaded")
	}
	extractor := intent.NewExtractor(recognizer, geocoder, logger)

	// ── Schema context ────────────────────────────────────────────────────────
	// Loaded on first use; a missing document only degrades the prompt.
	schema := schemadoc.NewFileCache(cfg.SchemaContextPath, logger)

	// ── Orchestrator ──────────────────────────────────────────────────────────
	orch := orchestrator.New(orchestrator.Deps{
		Extractor:  extractor,
		Generator:  generator,
		Validator:  sqlguard.Validator{RequireLimit: cfg.SQLRequireLimit},
		Executor:   st,
		Schema:     schema,
		Summarizer: summary.New(generator, logger),
	}, orchestrator.Config{
		PrimaryPath:  primaryPath,
		NearestCells: cfg.NearestCells,
	}, metrics, logger)

	// ── HTTP server ───────────────────────────────────────────────────────────
	handler := api.NewServer(
		orch,
		st,
		promhttp.Handler(),
		api.Config{
			Env:        cfg.Env,
			AskTimeout: cfg.AskTimeout,
		},
		logger,
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.AskTimeout + 10*time.Second, // answers stream for up to AskTimeout
		IdleTimeout:  120 * time.Second,
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until either a signal arrives or the server dies unexpectedly.
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	// Give in-flight answers up to 20 seconds to finish streaming.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// openDB opens the connection pool and verifies the database is reachable.
// The server refuses to start without it.
func openDB(dsn string) (*sql.DB, error) {
	pool, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	// Tune the connection pool.
	pool.SetMaxOpenConns(25)
	pool.SetMaxIdleConns(10)
	pool.SetConnMaxLifetime(5 * time.Minute)
	pool.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return pool, nil
}
