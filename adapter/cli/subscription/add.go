package subscription

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Owl23007/synapse-android-sub000/adapter/cli"
	"github.com/Owl23007/synapse-android-sub000/internal/calendar/application/commands"
)

var (
	addName     string
	addColor    string
	addInterval time.Duration
	addNoCheck  bool
	addSyncNow  bool
)

var addCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Subscribe to a feed",
	Long: `Subscribe to an iCalendar feed. The URL is checked first unless --no-check is given.

Examples:
  synapse subscription add webcal://example.com/holidays.ics --name Holidays
  synapse subscription add https://example.com/team.ics --name Team --interval 1h --sync`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		name := addName
		if name == "" {
			name = args[0]
		}

		sub, err := app.AddSubscriptionHandler.Handle(cmd.Context(), commands.AddSubscriptionCommand{
			Name:           name,
			URL:            args[0],
			Color:          addColor,
			SyncInterval:   addInterval,
			SkipValidation: addNoCheck,
		})
		if err != nil {
			return fmt.Errorf("failed to add subscription: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Subscribed to %s\n", sub.Name())
		fmt.Fprintf(out, "  ID:       %s\n", sub.ID())
		fmt.Fprintf(out, "  URL:      %s\n", sub.URL())
		fmt.Fprintf(out, "  Interval: %s\n", sub.SyncInterval())

		if !addSyncNow {
			return nil
		}
		result, err := app.SyncSubscriptionHandler.Handle(cmd.Context(), sub.ID())
		if err != nil {
			return fmt.Errorf("failed to sync subscription: %w", err)
		}
		printResult(cmd, sub.Name(), result)
		return nil
	},
}

func init() {
	addCmd.Flags().StringVarP(&addName, "name", "n", "", "display name (default the URL)")
	addCmd.Flags().StringVar(&addColor, "color", "", "color for synced schedules")
	addCmd.Flags().DurationVar(&addInterval, "interval", 0, "sync interval (default 24h)")
	addCmd.Flags().BoolVar(&addNoCheck, "no-check", false, "skip probing the URL")
	addCmd.Flags().BoolVar(&addSyncNow, "sync", false, "sync right after subscribing")
}
