// Package reminders holds the reminder commands.
package reminders

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Owl23007/synapse-android-sub000/adapter/cli"
)

// Cmd is the reminders command group
var Cmd = &cobra.Command{
	Use:     "reminders",
	Aliases: []string{"reminder", "r"},
	Short:   "Inspect and re-arm reminders",
	Long: `Reminders are armed in the alarm store (Redis when REDIS_URL is set,
otherwise in process memory, which lasts only as long as the command).`,
}

var listJSON bool

var rearmCmd = &cobra.Command{
	Use:   "rearm",
	Short: "Re-arm reminders for every stored schedule",
	Long: `Submit every stored schedule to the reminder scheduler, as the worker does
on start. Triggers already in the past are skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		n, err := app.BootRecovery.Run(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Re-armed reminders for %d schedule(s)\n", n)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List armed reminders",
	Aliases: []string{"ls"},
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		alarms, err := app.Alarms.ListArmed(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list reminders: %w", err)
		}
		sort.Slice(alarms, func(i, j int) bool {
			return alarms[i].TriggerAt.Before(alarms[j].TriggerAt)
		})

		out := cmd.OutOrStdout()
		if listJSON {
			return cli.PrintJSON(out, alarms)
		}
		if len(alarms) == 0 {
			fmt.Fprintln(out, "No reminders armed.")
			return nil
		}

		tw := cli.NewTable(out)
		fmt.Fprintln(tw, "TRIGGER\tTIER\tBEFORE\tTITLE\tHANDLE")
		for _, a := range alarms {
			fmt.Fprintf(tw, "%s\t%s\t%dm\t%s\t%s\n",
				cli.FormatTime(a.TriggerAt, app.Zone()), a.Tier, a.Minutes, a.Title, a.Handle)
		}
		return tw.Flush()
	},
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "print JSON")

	Cmd.AddCommand(rearmCmd)
	Cmd.AddCommand(listCmd)
}
