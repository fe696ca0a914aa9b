// Package caldav holds the CalDAV commands.
package caldav

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Owl23007/synapse-android-sub000/adapter/cli"
	"github.com/Owl23007/synapse-android-sub000/internal/calendar/domain"
	caldavSync "github.com/Owl23007/synapse-android-sub000/internal/calendar/infrastructure/caldav"
)

// Cmd is the caldav command group
var Cmd = &cobra.Command{
	Use:   "caldav",
	Short: "Sync schedules with a CalDAV server",
	Long: `Push local schedules to a CalDAV calendar (iCloud, Fastmail, Nextcloud)
or pull its events into local schedules.

Requires CALDAV_URL, CALDAV_USERNAME and CALDAV_PASSWORD.`,
}

var (
	rangeFrom      string
	rangeDays      int
	pullCalendar   string
	pullStrategy   string
	pullIncludeOwn bool
	pushDelete     bool
)

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push local schedules in a date range",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, syncer, err := requireSyncer()
		if err != nil {
			return err
		}
		from, to, err := cli.ParseRange(rangeFrom, rangeDays, app.Zone(), time.Now())
		if err != nil {
			return err
		}
		schedules, err := app.Schedules.List(cmd.Context(), domain.ScheduleFilter{From: from, To: to})
		if err != nil {
			return fmt.Errorf("failed to load schedules: %w", err)
		}
		local := schedules[:0]
		for _, s := range schedules {
			if !s.IsFromSubscription() {
				local = append(local, s)
			}
		}

		result, err := syncer.WithDeleteMissing(pushDelete).Push(cmd.Context(), local)
		if err != nil {
			return fmt.Errorf("failed to push: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Pushed %d schedule(s): %d created, %d updated, %d deleted, %d failed\n",
			len(local), result.Created, result.Updated, result.Deleted, result.Failed)
		return nil
	},
}

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Import remote events in a date range",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, syncer, err := requireSyncer()
		if err != nil {
			return err
		}
		strategy, err := domain.ParseConflictStrategy(pullStrategy)
		if err != nil {
			return err
		}
		from, to, err := cli.ParseRange(rangeFrom, rangeDays, app.Zone(), time.Now())
		if err != nil {
			return err
		}

		pulled, err := syncer.Pull(cmd.Context(), from, to, pullCalendar, pullIncludeOwn)
		if err != nil {
			return fmt.Errorf("failed to pull: %w", err)
		}
		result := app.ImportSchedulesHandler.Merge(cmd.Context(), pulled, pullCalendar, strategy)
		fmt.Fprintf(cmd.OutOrStdout(), "Pulled %d event(s): %d imported, %d failed, %d conflicts\n",
			len(pulled), result.SuccessCount, result.FailedCount, len(result.Conflicts))
		return nil
	},
}

var calendarsCmd = &cobra.Command{
	Use:   "calendars",
	Short: "List remote calendars",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, syncer, err := requireSyncer()
		if err != nil {
			return err
		}
		calendars, err := syncer.ListCalendars(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list calendars: %w", err)
		}
		tw := cli.NewTable(cmd.OutOrStdout())
		fmt.Fprintln(tw, "NAME\tPATH")
		for _, c := range calendars {
			fmt.Fprintf(tw, "%s\t%s\n", c.Name, c.Path)
		}
		return tw.Flush()
	},
}

func requireSyncer() (*cli.App, *caldavSync.Syncer, error) {
	app, err := cli.RequireApp()
	if err != nil {
		return nil, nil, err
	}
	if app.CalDAV == nil {
		return nil, nil, fmt.Errorf("caldav: %w; set CALDAV_URL", cli.ErrNotConfigured)
	}
	return app, app.CalDAV, nil
}

func init() {
	for _, c := range []*cobra.Command{pushCmd, pullCmd} {
		c.Flags().StringVar(&rangeFrom, "from", "", "first day (default today)")
		c.Flags().IntVar(&rangeDays, "days", 30, "number of days")
	}
	pushCmd.Flags().BoolVar(&pushDelete, "delete-missing", false, "delete remote events pushed earlier that are no longer local")
	pullCmd.Flags().StringVar(&pullCalendar, "calendar", "caldav", "local calendar to import into")
	pullCmd.Flags().StringVar(&pullStrategy, "strategy", "skip", "conflict strategy: skip, replace or keep-both")
	pullCmd.Flags().BoolVar(&pullIncludeOwn, "include-own", false, "also pull events this tool pushed")

	Cmd.AddCommand(pushCmd)
	Cmd.AddCommand(pullCmd)
	Cmd.AddCommand(calendarsCmd)
}
