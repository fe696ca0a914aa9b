package subscription

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Owl23007/synapse-android-sub000/adapter/cli"
)

var removeCmd = &cobra.Command{
	Use:     "remove <subscription-id>",
	Short:   "Unsubscribe and delete synced schedules",
	Aliases: []string{"rm"},
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		removed, err := app.RemoveSubscriptionHandler.Handle(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to remove subscription: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed subscription %s (%d schedules deleted)\n", args[0], removed)
		return nil
	},
}
