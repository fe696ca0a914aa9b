package schedule

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Owl23007/synapse-android-sub000/adapter/cli"
	"github.com/Owl23007/synapse-android-sub000/internal/calendar/application/commands"
	"github.com/Owl23007/synapse-android-sub000/internal/calendar/domain"
	"github.com/Owl23007/synapse-android-sub000/internal/shared/infrastructure/security"
)

var (
	importCalendarID string
	importStrategy   string
)

var importCmd = &cobra.Command{
	Use:   "import <file.ics|->",
	Short: "Import schedules from an iCalendar file",
	Long: `Import the VEVENTs of an iCalendar file. Use - to read standard input.

Strategies for schedules overlapping existing ones:
  skip       drop the incoming schedule (default)
  replace    delete the overlapping schedules first
  keep-both  import it alongside them

Examples:
  synapse schedule import timetable.ics
  curl -s https://example.com/cal.ics | synapse schedule import - --strategy replace`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		strategy, err := domain.ParseConflictStrategy(importStrategy)
		if err != nil {
			return err
		}
		content, err := security.ReadCalendarFile(args[0], cmd.InOrStdin())
		if err != nil {
			return err
		}

		result, err := app.ImportSchedulesHandler.Handle(cmd.Context(), commands.ImportSchedulesCommand{
			ICSText:    content,
			CalendarID: importCalendarID,
			Strategy:   strategy,
		})
		if err != nil {
			return fmt.Errorf("failed to import: %w", err)
		}

		printImportResult(cmd, result)
		return nil
	},
}

func printImportResult(cmd *cobra.Command, result domain.ImportResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Imported: %d\n", result.SuccessCount)
	fmt.Fprintf(out, "Failed:   %d\n", result.FailedCount)
	if len(result.Conflicts) > 0 {
		loc := cli.GetApp().Zone()
		fmt.Fprintf(out, "Conflicts: %d\n", len(result.Conflicts))
		for _, s := range result.Conflicts {
			fmt.Fprintf(out, "  - %s (%s)\n", s.Title(), cli.FormatTime(s.StartTime(), loc))
		}
	}
}

func init() {
	importCmd.Flags().StringVar(&importCalendarID, "calendar", "default", "calendar to import into")
	importCmd.Flags().StringVar(&importStrategy, "strategy", "skip", "conflict strategy: skip, replace or keep-both")
}
