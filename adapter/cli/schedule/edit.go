package schedule

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Owl23007/synapse-android-sub000/adapter/cli"
	"github.com/Owl23007/synapse-android-sub000/internal/calendar/application/commands"
	"github.com/Owl23007/synapse-android-sub000/internal/calendar/domain"
)

var (
	editTitle       string
	editStart       string
	editEnd         string
	editType        string
	editLocation    string
	editDescription string
	editColor       string
	editReminders   []int
	editAlarm       bool
	editRepeat      string
)

var editCmd = &cobra.Command{
	Use:   "edit <schedule-id>",
	Short: "Edit a schedule",
	Long: `Change the given fields of a schedule. Reminders are re-armed
from the edited schedule.

Examples:
  synapse schedule edit 3f2a... --start "2024-06-03 10:00" --end "2024-06-03 11:00"
  synapse schedule edit 3f2a... --remind 30,5 --alarm`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		changes, err := collectChanges(cmd, app.Zone())
		if err != nil {
			return err
		}

		updated, err := app.UpdateScheduleHandler.Handle(cmd.Context(), commands.UpdateScheduleCommand{
			ID:      args[0],
			Changes: changes,
		})
		if err != nil {
			return fmt.Errorf("failed to edit schedule: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Updated schedule")
		printSchedule(cmd, updated, app.Zone())
		return nil
	},
}

func collectChanges(cmd *cobra.Command, zone *time.Location) (domain.ScheduleChanges, error) {
	var c domain.ScheduleChanges
	flags := cmd.Flags()

	if flags.Changed("title") {
		c.Title = &editTitle
	}
	if flags.Changed("description") {
		c.Description = &editDescription
	}
	if flags.Changed("location") {
		c.Location = &editLocation
	}
	if flags.Changed("start") {
		start, err := cli.ParseDateTime(editStart, zone)
		if err != nil {
			return c, fmt.Errorf("invalid --start: %w", err)
		}
		c.Start = &start
	}
	if flags.Changed("end") {
		end, err := cli.ParseDateTime(editEnd, zone)
		if err != nil {
			return c, fmt.Errorf("invalid --end: %w", err)
		}
		c.End = &end
	}
	if flags.Changed("type") {
		t, err := domain.ParseScheduleType(editType)
		if err != nil {
			return c, err
		}
		c.Type = &t
	}
	if flags.Changed("color") {
		c.Color = &editColor
	}
	if flags.Changed("remind") {
		c.ReminderMinutes = &editReminders
	}
	if flags.Changed("alarm") {
		c.IsAlarm = &editAlarm
	}
	if flags.Changed("repeat") {
		c.RepeatRule = &editRepeat
	}
	return c, nil
}

func init() {
	editCmd.Flags().StringVarP(&editTitle, "title", "t", "", "new title")
	editCmd.Flags().StringVarP(&editStart, "start", "s", "", "new start")
	editCmd.Flags().StringVarP(&editEnd, "end", "e", "", "new end")
	editCmd.Flags().StringVar(&editType, "type", "", "new schedule type")
	editCmd.Flags().StringVarP(&editLocation, "location", "l", "", "new location")
	editCmd.Flags().StringVar(&editDescription, "description", "", "new description")
	editCmd.Flags().StringVar(&editColor, "color", "", "new color override; empty restores the type color")
	editCmd.Flags().IntSliceVar(&editReminders, "remind", nil, "new reminder offsets in minutes")
	editCmd.Flags().BoolVar(&editAlarm, "alarm", false, "fire reminders as clock alarms")
	editCmd.Flags().StringVar(&editRepeat, "repeat", "", "new RRULE; empty clears it")
}
