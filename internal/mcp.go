package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/sinorat/sinorat/internal/agenda"
	"github.com/sinorat/sinorat/internal/backend"
	"github.com/sinorat/sinorat/internal/cache"
	"github.com/sinorat/sinorat/internal/disposisi"
	"github.com/sinorat/sinorat/internal/letters"
	"github.com/sinorat/sinorat/internal/mcpserver"
	"github.com/sinorat/sinorat/internal/numbering"
	"github.com/sinorat/sinorat/internal/token"
)

// RunMCP starts the MCP server on stdin/stdout. Logs go to stderr so they
// never corrupt the protocol stream.
func RunMCP(_ context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	db, err := cache.Open(cfg.Cache.Path)
	if err != nil {
		return fmt.Errorf("init cache: %w", err)
	}
	defer db.Close()

	tokens := token.NewStore()
	if cfg.Backend.Token != "" {
		tokens.Set(cfg.Backend.Token)
	}

	client := backend.New(cfg.Backend.BaseURL, tokens, cfg.Backend.Timeout(), cfg.Backend.CheckTimeout())

	srv := mcpserver.New(
		letters.NewService(client, logger),
		disposisi.NewService(client, db, logger),
		agenda.NewService(client),
		numbering.NewResolver(client, db, logger),
	)

	logger.Info("MCP server starting on stdio")
	return srv.ServeStdio()
}
