package mcp

import (
	"context"

	"github.com/felixgeelhaar/mcp-go"

	"github.com/Owl23007/synapse-android-sub000/adapter/cli"
	"github.com/Owl23007/synapse-android-sub000/internal/calendar/application/commands"
	"github.com/Owl23007/synapse-android-sub000/internal/calendar/application/queries"
	"github.com/Owl23007/synapse-android-sub000/internal/calendar/domain"
)

type scheduleCreateInput struct {
	Title           string `json:"title" jsonschema:"required"`
	Start           string `json:"start" jsonschema:"required"`
	End             string `json:"end,omitempty"`
	Type            string `json:"type,omitempty"`
	Location        string `json:"location,omitempty"`
	Description     string `json:"description,omitempty"`
	CalendarID      string `json:"calendar_id,omitempty"`
	ReminderMinutes []int  `json:"reminder_minutes,omitempty"`
	IsAlarm         bool   `json:"is_alarm,omitempty"`
	RepeatRule      string `json:"repeat_rule,omitempty"`
	AllDay          bool   `json:"all_day,omitempty"`
}

type scheduleListInput struct {
	From       string `json:"from,omitempty"`
	Days       int    `json:"days,omitempty"`
	CalendarID string `json:"calendar_id,omitempty"`
	Search     string `json:"search,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

type scheduleDeleteInput struct {
	ID string `json:"id" jsonschema:"required"`
}

type scheduleImportInput struct {
	ICS        string `json:"ics" jsonschema:"required"`
	CalendarID string `json:"calendar_id,omitempty"`
	Strategy   string `json:"strategy,omitempty"`
}

type scheduleExportInput struct {
	IDs  []string `json:"ids,omitempty"`
	From string   `json:"from,omitempty"`
	Days int      `json:"days,omitempty"`
}

type importOutput struct {
	SuccessCount int                   `json:"success_count"`
	FailedCount  int                   `json:"failed_count"`
	Conflicts    []queries.ScheduleDTO `json:"conflicts"`
	Imported     []queries.ScheduleDTO `json:"imported"`
}

func registerScheduleTools(srv *mcp.Server, deps ToolDependencies) error {
	app := deps.App

	srv.Tool("schedule.create").
		Description("Create a schedule and arm its reminders. Times are YYYY-MM-DD HH:MM in the configured zone, or RFC 3339").
		Handler(createSchedule(app))

	srv.Tool("schedule.list").
		Description("List schedules overlapping a range of days (default: 7 days from today)").
		Handler(listSchedules(app))

	srv.Tool("schedule.delete").
		Description("Delete a schedule and cancel its reminders").
		Handler(func(ctx context.Context, input scheduleDeleteInput) (map[string]any, error) {
			if app.DeleteScheduleHandler == nil {
				return nil, errNoStore
			}
			if err := app.DeleteScheduleHandler.Handle(ctx, input.ID); err != nil {
				return nil, err
			}
			return map[string]any{"deleted": input.ID}, nil
		})

	srv.Tool("schedule.import").
		Description("Import iCalendar text. strategy is skip (default), replace or keep_both").
		Handler(importSchedules(app))

	srv.Tool("schedule.export").
		Description("Export schedules as iCalendar text, by ids or by range").
		Handler(exportSchedules(app))

	return nil
}

func createSchedule(app *cli.App) func(context.Context, scheduleCreateInput) (*queries.ScheduleDTO, error) {
	return func(ctx context.Context, input scheduleCreateInput) (*queries.ScheduleDTO, error) {
		if app.CreateScheduleHandler == nil {
			return nil, errNoStore
		}
		start, err := cli.ParseDateTime(input.Start, app.Zone())
		if err != nil {
			return nil, err
		}
		end := start.Add(defaultDuration)
		if parsed, err := parseOptionalTime(app, input.End); err != nil {
			return nil, err
		} else if parsed != nil {
			end = *parsed
		}

		var scheduleType domain.ScheduleType
		if input.Type != "" {
			if scheduleType, err = domain.ParseScheduleType(input.Type); err != nil {
				return nil, err
			}
		}
		calendarID := input.CalendarID
		if calendarID == "" {
			calendarID = defaultCalendarID
		}

		created, err := app.CreateScheduleHandler.Handle(ctx, commands.CreateScheduleCommand{
			Title:           input.Title,
			Description:     input.Description,
			Location:        input.Location,
			Start:           start,
			End:             end,
			TimezoneID:      app.Zone().String(),
			IsAllDay:        input.AllDay,
			Type:            scheduleType,
			CalendarID:      calendarID,
			ReminderMinutes: input.ReminderMinutes,
			IsAlarm:         input.IsAlarm,
			RepeatRule:      input.RepeatRule,
		})
		if err != nil {
			return nil, err
		}
		dto := queries.ToScheduleDTO(created)
		return &dto, nil
	}
}

func listSchedules(app *cli.App) func(context.Context, scheduleListInput) ([]queries.ScheduleDTO, error) {
	return func(ctx context.Context, input scheduleListInput) ([]queries.ScheduleDTO, error) {
		if app.ListSchedulesHandler == nil {
			return nil, errNoStore
		}
		from, to, err := dateRange(app, input.From, input.Days)
		if err != nil {
			return nil, err
		}
		return app.ListSchedulesHandler.Handle(ctx, queries.ListSchedulesQuery{
			From:       from,
			To:         to,
			CalendarID: input.CalendarID,
			Search:     input.Search,
			Limit:      input.Limit,
		})
	}
}

func importSchedules(app *cli.App) func(context.Context, scheduleImportInput) (*importOutput, error) {
	return func(ctx context.Context, input scheduleImportInput) (*importOutput, error) {
		if app.ImportSchedulesHandler == nil {
			return nil, errNoStore
		}
		strategy, err := domain.ParseConflictStrategy(input.Strategy)
		if err != nil {
			return nil, err
		}
		calendarID := input.CalendarID
		if calendarID == "" {
			calendarID = defaultCalendarID
		}
		result, err := app.ImportSchedulesHandler.Handle(ctx, commands.ImportSchedulesCommand{
			ICSText:    input.ICS,
			CalendarID: calendarID,
			Strategy:   strategy,
		})
		if err != nil {
			return nil, err
		}
		return &importOutput{
			SuccessCount: result.SuccessCount,
			FailedCount:  result.FailedCount,
			Conflicts:    toDTOs(result.Conflicts),
			Imported:     toDTOs(result.Imported),
		}, nil
	}
}

func exportSchedules(app *cli.App) func(context.Context, scheduleExportInput) (map[string]any, error) {
	return func(ctx context.Context, input scheduleExportInput) (map[string]any, error) {
		if app.ExportSchedulesHandler == nil {
			return nil, errNoStore
		}
		var (
			text string
			err  error
		)
		if len(input.IDs) > 0 {
			text, err = app.ExportSchedulesHandler.Handle(ctx, input.IDs)
		} else {
			from, to, rangeErr := dateRange(app, input.From, input.Days)
			if rangeErr != nil {
				return nil, rangeErr
			}
			text, err = app.ExportSchedulesHandler.HandleRange(ctx, from, to)
		}
		if err != nil {
			return nil, err
		}
		return map[string]any{"ics": text}, nil
	}
}

func toDTOs(schedules []*domain.Schedule) []queries.ScheduleDTO {
	out := make([]queries.ScheduleDTO, 0, len(schedules))
	for _, s := range schedules {
		out = append(out, queries.ToScheduleDTO(s))
	}
	return out
}
