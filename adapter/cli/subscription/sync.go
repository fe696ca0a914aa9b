package subscription

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Owl23007/synapse-android-sub000/adapter/cli"
	"github.com/Owl23007/synapse-android-sub000/internal/calendar/application/commands"
	"github.com/Owl23007/synapse-android-sub000/internal/calendar/domain"
)

var (
	syncForce bool
	syncJSON  bool
)

var syncCmd = &cobra.Command{
	Use:   "sync [subscription-id]",
	Short: "Sync subscriptions",
	Long: `Refresh one subscription, or every due subscription when no id is given.
Synced schedules are replaced wholesale by the feed's current events.

Examples:
  synapse subscription sync
  synapse subscription sync --force
  synapse subscription sync 7c9e...`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}

		var results []domain.SyncResult
		if len(args) == 1 {
			result, err := app.SyncSubscriptionHandler.Handle(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to sync subscription: %w", err)
			}
			results = append(results, result)
		} else {
			results, err = app.SyncAllSubscriptionsHandler.Handle(cmd.Context(), commands.SyncAllSubscriptionsCommand{
				Force: syncForce,
			})
			if err != nil {
				return fmt.Errorf("failed to sync subscriptions: %w", err)
			}
		}

		if syncJSON {
			return cli.PrintJSON(cmd.OutOrStdout(), results)
		}
		if len(results) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Nothing to sync.")
			return nil
		}
		for _, r := range results {
			printResult(cmd, r.SubscriptionID, r)
		}
		return nil
	},
}

func printResult(cmd *cobra.Command, label string, r domain.SyncResult) {
	out := cmd.OutOrStdout()
	if !r.Success {
		fmt.Fprintf(out, "%s: failed: %s\n", label, r.Error)
		return
	}
	fmt.Fprintf(out, "%s: %d added, %d removed\n", label, r.AddedCount, r.RemovedCount)
}

func init() {
	syncCmd.Flags().BoolVarP(&syncForce, "force", "f", false, "sync every enabled subscription, due or not")
	syncCmd.Flags().BoolVar(&syncJSON, "json", false, "print JSON")
}
