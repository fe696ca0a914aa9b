package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/automaxprocs/maxprocs"

	"github.com/Owl23007/synapse-android-sub000/adapter/cli"
	"github.com/Owl23007/synapse-android-sub000/internal/app"
	mcpinternal "github.com/Owl23007/synapse-android-sub000/internal/mcp"
	"github.com/Owl23007/synapse-android-sub000/pkg/config"
	"github.com/Owl23007/synapse-android-sub000/pkg/observability"
)

func main() {
	logger := observability.LoggerFromEnv("synapse-mcp")
	if _, err := maxprocs.Set(); err != nil {
		logger.Warn("failed to set GOMAXPROCS", "error", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize container", "error", err)
		os.Exit(1)
	}
	defer container.Close()

	if err := mcpinternal.Serve(ctx, cfg, cli.NewAppFromContainer(container), logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("mcp server error", "error", err)
		container.Close()
		os.Exit(1)
	}
}
