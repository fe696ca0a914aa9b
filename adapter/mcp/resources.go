package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/felixgeelhaar/mcp-go"

	"github.com/Owl23007/synapse-android-sub000/adapter/cli"
	"github.com/Owl23007/synapse-android-sub000/internal/calendar/application/queries"
)

// RegisterResources registers MCP resources that expose Synapse data.
func RegisterResources(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return fmt.Errorf("server is required")
	}
	app := deps.App

	srv.Resource("synapse://schedules/today").
		Name("Today's Schedules").
		Description("Schedules overlapping today").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			return scheduleRange(ctx, app, uri, 1)
		})

	srv.Resource("synapse://schedules/week").
		Name("This Week's Schedules").
		Description("Schedules overlapping the next seven days").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			return scheduleRange(ctx, app, uri, 7)
		})

	srv.Resource("synapse://subscriptions").
		Name("Subscriptions").
		Description("Calendar subscriptions and their sync state").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			if app == nil || app.ListSubscriptionsHandler == nil {
				return nil, errNoStore
			}
			subs, err := app.ListSubscriptionsHandler.Handle(ctx)
			if err != nil {
				return nil, err
			}
			return jsonContent(uri, subs)
		})

	return nil
}

func scheduleRange(ctx context.Context, app *cli.App, uri string, days int) (*mcp.ResourceContent, error) {
	if app == nil || app.ListSchedulesHandler == nil {
		return nil, errNoStore
	}
	from, to, err := cli.ParseRange("", days, app.Zone(), time.Now())
	if err != nil {
		return nil, err
	}
	schedules, err := app.ListSchedulesHandler.Handle(ctx, queries.ListSchedulesQuery{From: from, To: to})
	if err != nil {
		return nil, err
	}
	return jsonContent(uri, schedules)
}

func jsonContent(uri string, v any) (*mcp.ResourceContent, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return &mcp.ResourceContent{
		URI:      uri,
		MimeType: "application/json",
		Text:     string(data),
	}, nil
}
