package mcp

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/mcp-go"
)

// RegisterPrompts registers MCP prompts for common Synapse workflows.
func RegisterPrompts(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return fmt.Errorf("server is required")
	}

	srv.Prompt("plan_week").
		Description("Review the coming week and add missing schedules with sensible reminders.").
		Handler(func(ctx context.Context, args map[string]string) (*mcp.PromptResult, error) {
			return &mcp.PromptResult{
				Description: "Weekly Planning",
				Messages: []mcp.PromptMessage{
					{
						Role: string(mcp.RoleUser),
						Content: mcp.TextContent{
							Type: "text",
							Text: `Help me plan the coming week.

1. Read synapse://schedules/week to see what is already booked.
2. Point out overlapping schedules and days with no breaks.
3. Ask me what is missing, then add it with schedule.create.

Use reminder_minutes of [10] for ordinary events and [60, 10] with
is_alarm for exams and flights.`,
						},
					},
				},
			}, nil
		})

	srv.Prompt("import_timetable").
		Description("Import a timetable or feed and resolve conflicts with existing schedules.").
		Handler(func(ctx context.Context, args map[string]string) (*mcp.PromptResult, error) {
			return &mcp.PromptResult{
				Description: "Timetable Import",
				Messages: []mcp.PromptMessage{
					{
						Role: string(mcp.RoleUser),
						Content: mcp.TextContent{
							Type: "text",
							Text: `I want to bring a timetable into Synapse.

If I give you a URL, subscribe to it with subscription.add and run
subscription.sync. If I paste iCalendar text, call schedule.import with
strategy "skip" first, show me the conflicts it reports, and only re-run
with "replace" or "keep_both" once I have decided.`,
						},
					},
				},
			}, nil
		})

	return nil
}
