// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/sinorat/sinorat/internal/agenda"
	"github.com/sinorat/sinorat/internal/api"
	"github.com/sinorat/sinorat/internal/backend"
	"github.com/sinorat/sinorat/internal/cache"
	"github.com/sinorat/sinorat/internal/disposisi"
	"github.com/sinorat/sinorat/internal/letters"
	"github.com/sinorat/sinorat/internal/numbering"
	"github.com/sinorat/sinorat/internal/scaninbox"
	"github.com/sinorat/sinorat/internal/sse"
	"github.com/sinorat/sinorat/internal/token"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("backend_url", cfg.Backend.BaseURL),
		slog.String("cache_path", cfg.Cache.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure data directory exists.
	if err := os.MkdirAll(cfg.Data.Path, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	// Local fallback store.
	db, err := cache.Open(cfg.Cache.Path)
	if err != nil {
		return fmt.Errorf("init cache: %w", err)
	}
	defer db.Close()

	// Backend credential. The store evicts the token at its JWT expiry, so a
	// stale credential degrades to unauthenticated requests instead of
	// confusing 401 loops.
	tokens := token.NewStore()
	if cfg.Backend.Token != "" {
		tokens.Set(cfg.Backend.Token)
	}

	client := backend.New(cfg.Backend.BaseURL, tokens, cfg.Backend.Timeout(), cfg.Backend.CheckTimeout())

	// Domain services.
	letterSvc := letters.NewService(client, logger)
	disposisiSvc := disposisi.NewService(client, db, logger)
	agendaSvc := agenda.NewService(client)
	resolver := numbering.NewResolver(client, db, logger)

	// SSE broker.
	broker := sse.NewBroker()
	defer broker.Close()

	apiRouter := api.NewRouter(letterSvc, disposisiSvc, agendaSvc, resolver,
		cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker, cfg.Data.Path)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Watch the scanner drop directory, announcing settled scans over SSE.
	if cfg.Inbox.Enabled {
		g.Go(func() error {
			return scaninbox.Watch(gCtx, cfg.Inbox.Path, logger, func(name string, size int64) {
				broker.Publish(sse.Event{
					Type: sse.EventScanReceived,
					Data: map[string]any{"file": name, "size": size},
				})
			})
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
