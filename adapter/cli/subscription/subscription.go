// Package subscription holds the subscription commands.
package subscription

import (
	"github.com/spf13/cobra"
)

// Cmd is the subscription command group
var Cmd = &cobra.Command{
	Use:     "subscription",
	Aliases: []string{"subscriptions", "sub"},
	Short:   "Manage calendar subscriptions",
	Long: `Subscribe to remote iCalendar feeds (http, https or webcal) and mirror
their events into local schedules.`,
}

func init() {
	Cmd.AddCommand(addCmd)
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(syncCmd)
	Cmd.AddCommand(validateCmd)
	Cmd.AddCommand(removeCmd)
}
