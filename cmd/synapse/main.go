package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Owl23007/synapse-android-sub000/adapter/cli"
	"github.com/Owl23007/synapse-android-sub000/adapter/cli/caldav"
	"github.com/Owl23007/synapse-android-sub000/adapter/cli/chat"
	"github.com/Owl23007/synapse-android-sub000/adapter/cli/mcp"
	"github.com/Owl23007/synapse-android-sub000/adapter/cli/reminders"
	"github.com/Owl23007/synapse-android-sub000/adapter/cli/schedule"
	"github.com/Owl23007/synapse-android-sub000/adapter/cli/subscription"
	"github.com/Owl23007/synapse-android-sub000/internal/app"
	"github.com/Owl23007/synapse-android-sub000/pkg/config"
	"github.com/Owl23007/synapse-android-sub000/pkg/observability"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cli.SetBootstrap(func(ctx context.Context, configFile string, verbose bool) (*cli.App, func(), error) {
		cfg, err := config.LoadFile(configFile)
		if err != nil {
			return nil, nil, err
		}
		logger := newLogger(cfg, verbose)
		cli.SetLogger(logger)

		container, err := app.NewContainer(ctx, cfg, logger)
		if err != nil {
			logger.Debug("failed to initialize container", "error", err)
			return nil, nil, err
		}
		return cli.NewAppFromContainer(container), container.Close, nil
	})

	// Register commands
	cli.AddCommand(schedule.Cmd)
	cli.AddCommand(subscription.Cmd)
	cli.AddCommand(reminders.Cmd)
	cli.AddCommand(chat.Cmd)
	cli.AddCommand(caldav.Cmd)
	cli.AddCommand(mcp.Cmd)

	code := 0
	if err := cli.Root().ExecuteContext(ctx); err != nil {
		code = 1
	}
	cli.Close()
	os.Exit(code)
}

// newLogger keeps the CLI quiet unless --verbose is set; LOG_LEVEL still wins.
func newLogger(cfg *config.Config, verbose bool) *slog.Logger {
	logCfg := observability.DefaultLogConfig()
	logCfg.ServiceName = "synapse-cli"
	logCfg.Level = observability.LogLevelWarn
	if verbose {
		logCfg.Level = observability.LogLevelDebug
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		logCfg.Level = observability.LogLevel(level)
	}
	if cfg.IsProduction() {
		logCfg.Format = observability.LogFormatJSON
	}
	return observability.NewLogger(logCfg)
}
