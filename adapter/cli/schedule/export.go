package schedule

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Owl23007/synapse-android-sub000/adapter/cli"
	"github.com/Owl23007/synapse-android-sub000/internal/shared/infrastructure/security"
)

var (
	exportIDs    []string
	exportFrom   string
	exportDays   int
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export schedules as iCalendar",
	Long: `Export schedules as an iCalendar document, either by id or by date range.
Writes to standard output unless --output is given.

Examples:
  synapse schedule export --from 2024-06-01 --days 30 -o june.ics
  synapse schedule export --ids 3f2a...,9b1c...`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}

		var content string
		if len(exportIDs) > 0 {
			content, err = app.ExportSchedulesHandler.Handle(cmd.Context(), exportIDs)
		} else {
			from, to, rangeErr := cli.ParseRange(exportFrom, exportDays, app.Zone(), time.Now())
			if rangeErr != nil {
				return rangeErr
			}
			content, err = app.ExportSchedulesHandler.HandleRange(cmd.Context(), from, to)
		}
		if err != nil {
			return fmt.Errorf("failed to export: %w", err)
		}

		if exportOutput == "" || exportOutput == "-" {
			_, err := fmt.Fprint(cmd.OutOrStdout(), content)
			return err
		}
		if err := security.WriteCalendarFile(exportOutput, content); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", exportOutput)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringSliceVar(&exportIDs, "ids", nil, "schedule ids to export")
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "first day (default today)")
	exportCmd.Flags().IntVar(&exportDays, "days", 30, "number of days")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file")
}
