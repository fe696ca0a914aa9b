package mcp

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Owl23007/synapse-android-sub000/adapter/cli"
	mcpinternal "github.com/Owl23007/synapse-android-sub000/internal/mcp"
	"github.com/Owl23007/synapse-android-sub000/pkg/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Serve the schedule, subscription and reminder tools over MCP streamable
HTTP on MCP_ADDR. Set MCP_AUTH_TOKEN to require a bearer token.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		cfg, err := config.LoadFile(cli.ConfigFile())
		if err != nil {
			return err
		}

		logger := newServerLogger(cmd.ErrOrStderr(), cli.Verbose() || cfg.IsDevelopment())
		err = mcpinternal.Serve(cmd.Context(), cfg, app, logger)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func newServerLogger(out io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{
		Level: level,
	}))
}
