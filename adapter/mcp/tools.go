package mcp

import (
	"errors"

	"github.com/felixgeelhaar/mcp-go"

	"github.com/Owl23007/synapse-android-sub000/adapter/cli"
)

// ToolDependencies provides handlers and context for MCP tools.
type ToolDependencies struct {
	App *cli.App
}

// RegisterCLITools registers MCP tools that mirror CLI functionality.
func RegisterCLITools(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return errors.New("server is required")
	}
	if deps.App == nil {
		return errors.New("app is required")
	}

	if err := registerScheduleTools(srv, deps); err != nil {
		return err
	}
	if err := registerSubscriptionTools(srv, deps); err != nil {
		return err
	}
	if err := registerReminderTools(srv, deps); err != nil {
		return err
	}

	return nil
}
