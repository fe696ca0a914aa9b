package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Owl23007/synapse-android-sub000/adapter/cli"
	"github.com/Owl23007/synapse-android-sub000/internal/calendar/application/commands"
	"github.com/Owl23007/synapse-android-sub000/internal/calendar/domain"
)

var (
	addTitle       string
	addStart       string
	addEnd         string
	addDuration    time.Duration
	addCalendarID  string
	addType        string
	addLocation    string
	addDescription string
	addColor       string
	addReminders   []int
	addAlarm       bool
	addRepeat      string
	addAllDay      bool
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a schedule",
	Long: `Add a schedule and arm its reminders.

Types: MEETING, PERSONAL, WORK, STUDY, ENTERTAINMENT, EVENT

Examples:
  synapse schedule add --title "Standup" --start "2024-06-03 09:30" --duration 15m
  synapse schedule add --title "Exam" --start "2024-06-10 14:00" --end "2024-06-10 16:00" --type STUDY --remind 60,10 --alarm
  synapse schedule add --title "Gym" --start "2024-06-03 18:00" --repeat "FREQ=WEEKLY;BYDAY=MO,WE"`,
	Aliases: []string{"new", "create"},
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		loc := app.Zone()

		start, err := cli.ParseDateTime(addStart, loc)
		if err != nil {
			return fmt.Errorf("invalid --start: %w", err)
		}
		end := start.Add(addDuration)
		if addEnd != "" {
			end, err = cli.ParseDateTime(addEnd, loc)
			if err != nil {
				return fmt.Errorf("invalid --end: %w", err)
			}
		}

		var scheduleType domain.ScheduleType
		if addType != "" {
			scheduleType, err = domain.ParseScheduleType(addType)
			if err != nil {
				return err
			}
		}

		created, err := app.CreateScheduleHandler.Handle(cmd.Context(), commands.CreateScheduleCommand{
			Title:           addTitle,
			Description:     addDescription,
			Location:        addLocation,
			Start:           start,
			End:             end,
			TimezoneID:      loc.String(),
			IsAllDay:        addAllDay,
			Type:            scheduleType,
			CalendarID:      addCalendarID,
			Color:           addColor,
			ReminderMinutes: addReminders,
			IsAlarm:         addAlarm,
			RepeatRule:      addRepeat,
		})
		if err != nil {
			return fmt.Errorf("failed to add schedule: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Added schedule")
		fmt.Fprintln(out, strings.Repeat("-", 40))
		printSchedule(cmd, created, loc)
		return nil
	},
}

func printSchedule(cmd *cobra.Command, s *domain.Schedule, loc *time.Location) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:        %s\n", s.ID())
	fmt.Fprintf(out, "Title:     %s\n", s.Title())
	fmt.Fprintf(out, "When:      %s - %s\n", cli.FormatTime(s.StartTime(), loc), cli.FormatTime(s.EndTime(), loc))
	fmt.Fprintf(out, "Type:      %s\n", s.Type().DisplayName())
	fmt.Fprintf(out, "Calendar:  %s\n", s.CalendarID())
	if s.Location() != "" {
		fmt.Fprintf(out, "Location:  %s\n", s.Location())
	}
	if minutes := s.ReminderMinutes(); len(minutes) > 0 {
		fmt.Fprintf(out, "Reminders: %s\n", formatMinutes(minutes))
	}
	if s.IsRecurring() {
		fmt.Fprintf(out, "Repeats:   %s\n", s.RepeatRule())
	}
}

func formatMinutes(minutes []int) string {
	parts := make([]string, len(minutes))
	for i, m := range minutes {
		parts[i] = fmt.Sprintf("%dm", m)
	}
	return strings.Join(parts, ", ")
}

func init() {
	addCmd.Flags().StringVarP(&addTitle, "title", "t", "", "schedule title (required)")
	addCmd.Flags().StringVarP(&addStart, "start", "s", "", "start, e.g. \"2024-06-03 09:30\" (required)")
	addCmd.Flags().StringVarP(&addEnd, "end", "e", "", "end; defaults to start + --duration")
	addCmd.Flags().DurationVarP(&addDuration, "duration", "d", time.Hour, "duration when --end is not given")
	addCmd.Flags().StringVar(&addCalendarID, "calendar", "default", "calendar id")
	addCmd.Flags().StringVar(&addType, "type", "", "schedule type")
	addCmd.Flags().StringVarP(&addLocation, "location", "l", "", "location")
	addCmd.Flags().StringVar(&addDescription, "description", "", "description")
	addCmd.Flags().StringVar(&addColor, "color", "", "color override, e.g. #FF9800")
	addCmd.Flags().IntSliceVar(&addReminders, "remind", []int{10}, "reminder offsets in minutes before start")
	addCmd.Flags().BoolVar(&addAlarm, "alarm", false, "fire reminders as clock alarms")
	addCmd.Flags().StringVar(&addRepeat, "repeat", "", "RRULE, e.g. FREQ=WEEKLY;BYDAY=MO")
	addCmd.Flags().BoolVar(&addAllDay, "all-day", false, "all-day schedule")
	_ = addCmd.MarkFlagRequired("title")
	_ = addCmd.MarkFlagRequired("start")
}
