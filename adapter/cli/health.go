package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Owl23007/synapse-android-sub000/pkg/observability"
)

var healthJSON bool

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the store and alarm backends",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := RequireApp()
		if err != nil {
			return err
		}
		if app.Health == nil {
			return errors.New("health checks are not configured")
		}

		report := app.Health.Check(cmd.Context())
		out := cmd.OutOrStdout()
		if healthJSON {
			if err := PrintJSON(out, report); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(out, "status: %s\n", report.Status)
			for _, name := range app.Health.Names() {
				p := report.Dependencies[name]
				fmt.Fprintf(out, "  %-10s %-9s %s %s\n", name, p.Status, p.Latency, p.Message)
			}
		}
		if report.Status == observability.HealthStatusUnhealthy {
			return errors.New("unhealthy")
		}
		return nil
	},
}

func init() {
	healthCmd.Flags().BoolVar(&healthJSON, "json", false, "print JSON")
	rootCmd.AddCommand(healthCmd)
}
