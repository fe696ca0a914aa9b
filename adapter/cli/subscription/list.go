package subscription

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Owl23007/synapse-android-sub000/adapter/cli"
)

var listJSON bool

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List subscriptions",
	Aliases: []string{"ls"},
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		subs, err := app.ListSubscriptionsHandler.Handle(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list subscriptions: %w", err)
		}

		out := cmd.OutOrStdout()
		if listJSON {
			return cli.PrintJSON(out, subs)
		}
		if len(subs) == 0 {
			fmt.Fprintln(out, "No subscriptions.")
			return nil
		}

		tw := cli.NewTable(out)
		fmt.Fprintln(tw, "ID\tNAME\tINTERVAL\tLAST SYNC\tSTATUS")
		for _, s := range subs {
			last := "never"
			if s.LastSyncAt != nil {
				last = cli.FormatTime(*s.LastSyncAt, app.Zone())
			}
			status := "enabled"
			switch {
			case !s.IsEnabled:
				status = "disabled"
			case s.Due:
				status = "due"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.ID, s.Name, s.SyncInterval, last, status)
		}
		return tw.Flush()
	},
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "print JSON")
}
