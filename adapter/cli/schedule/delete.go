package schedule

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Owl23007/synapse-android-sub000/adapter/cli"
)

var deleteCmd = &cobra.Command{
	Use:     "delete <schedule-id>...",
	Short:   "Delete schedules",
	Long:    `Delete one or more schedules and cancel their reminders.`,
	Aliases: []string{"rm", "remove"},
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		for _, id := range args {
			if err := app.DeleteScheduleHandler.Handle(cmd.Context(), id); err != nil {
				return fmt.Errorf("failed to delete schedule %s: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted schedule %s\n", id)
		}
		return nil
	},
}
