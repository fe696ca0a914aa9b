package schedule

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Owl23007/synapse-android-sub000/adapter/cli"
	"github.com/Owl23007/synapse-android-sub000/internal/calendar/application/queries"
)

var (
	listFrom       string
	listDays       int
	listCalendarID string
	listSearch     string
	listLimit      int
	listJSON       bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List schedules",
	Long: `List schedules overlapping a window of days, starting today by default.

Examples:
  synapse schedule list
  synapse schedule list --from 2024-06-01 --days 30 --search exam
  synapse schedule list --json`,
	Aliases: []string{"ls"},
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		loc := app.Zone()
		from, to, err := cli.ParseRange(listFrom, listDays, loc, time.Now())
		if err != nil {
			return err
		}

		schedules, err := app.ListSchedulesHandler.Handle(cmd.Context(), queries.ListSchedulesQuery{
			From:       from,
			To:         to,
			CalendarID: listCalendarID,
			Search:     listSearch,
			Limit:      listLimit,
		})
		if err != nil {
			return fmt.Errorf("failed to list schedules: %w", err)
		}

		out := cmd.OutOrStdout()
		if listJSON {
			return cli.PrintJSON(out, schedules)
		}
		if len(schedules) == 0 {
			fmt.Fprintln(out, "No schedules found.")
			return nil
		}

		tw := cli.NewTable(out)
		fmt.Fprintln(tw, "ID\tSTART\tEND\tTYPE\tTITLE")
		for _, s := range schedules {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				s.ID,
				cli.FormatTime(s.StartTime, loc),
				cli.FormatTime(s.EndTime, loc),
				s.TypeName,
				s.Title,
			)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(out, "\n%d schedule(s)\n", len(schedules))
		return nil
	},
}

func init() {
	listCmd.Flags().StringVar(&listFrom, "from", "", "first day (default today)")
	listCmd.Flags().IntVar(&listDays, "days", 7, "number of days")
	listCmd.Flags().StringVar(&listCalendarID, "calendar", "", "only this calendar")
	listCmd.Flags().StringVar(&listSearch, "search", "", "match title, description or location")
	listCmd.Flags().IntVar(&listLimit, "limit", 0, "maximum results (0 for all)")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "print JSON")
}
