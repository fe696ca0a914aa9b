package mcp

import (
	"context"

	"github.com/felixgeelhaar/mcp-go"

	reminderDomain "github.com/Owl23007/synapse-android-sub000/internal/reminders/domain"
)

func registerReminderTools(srv *mcp.Server, deps ToolDependencies) error {
	app := deps.App

	srv.Tool("reminders.rearm").
		Description("Re-arm reminders for every stored schedule; past triggers are skipped").
		Handler(func(ctx context.Context, input struct{}) (map[string]any, error) {
			if app.BootRecovery == nil {
				return nil, errNoStore
			}
			n, err := app.BootRecovery.Run(ctx)
			if err != nil {
				return nil, err
			}
			return map[string]any{"schedules": n}, nil
		})

	srv.Tool("reminders.list").
		Description("List armed reminders").
		Handler(func(ctx context.Context, input struct{}) ([]reminderDomain.Alarm, error) {
			if app.Alarms == nil {
				return nil, errNoStore
			}
			return app.Alarms.ListArmed(ctx)
		})

	return nil
}
