package mcp

import (
	"context"
	"time"

	"github.com/felixgeelhaar/mcp-go"

	"github.com/Owl23007/synapse-android-sub000/internal/calendar/application/commands"
	"github.com/Owl23007/synapse-android-sub000/internal/calendar/application/queries"
	"github.com/Owl23007/synapse-android-sub000/internal/calendar/domain"
)

type subscriptionAddInput struct {
	Name     string `json:"name" jsonschema:"required"`
	URL      string `json:"url" jsonschema:"required"`
	Color    string `json:"color,omitempty"`
	Interval string `json:"interval,omitempty"`
}

type subscriptionSyncInput struct {
	ID    string `json:"id,omitempty"`
	Force bool   `json:"force,omitempty"`
}

func registerSubscriptionTools(srv *mcp.Server, deps ToolDependencies) error {
	app := deps.App

	srv.Tool("subscription.add").
		Description("Subscribe to an iCalendar feed (http, https or webcal URL)").
		Handler(func(ctx context.Context, input subscriptionAddInput) (*queries.SubscriptionDTO, error) {
			if app.AddSubscriptionHandler == nil {
				return nil, errNoStore
			}
			var interval time.Duration
			if input.Interval != "" {
				d, err := time.ParseDuration(input.Interval)
				if err != nil {
					return nil, err
				}
				interval = d
			}
			sub, err := app.AddSubscriptionHandler.Handle(ctx, commands.AddSubscriptionCommand{
				Name:         input.Name,
				URL:          input.URL,
				Color:        input.Color,
				SyncInterval: interval,
			})
			if err != nil {
				return nil, err
			}
			return &queries.SubscriptionDTO{
				ID:           sub.ID(),
				Name:         sub.Name(),
				URL:          sub.URL(),
				Color:        sub.Color(),
				SyncInterval: sub.SyncInterval().String(),
				IsEnabled:    sub.IsEnabled(),
				Due:          true,
			}, nil
		})

	srv.Tool("subscription.list").
		Description("List calendar subscriptions").
		Handler(func(ctx context.Context, input struct{}) ([]queries.SubscriptionDTO, error) {
			if app.ListSubscriptionsHandler == nil {
				return nil, errNoStore
			}
			return app.ListSubscriptionsHandler.Handle(ctx)
		})

	srv.Tool("subscription.sync").
		Description("Sync one subscription by id, or every due subscription (all of them with force)").
		Handler(syncSubscriptions(deps))

	return nil
}

func syncSubscriptions(deps ToolDependencies) func(context.Context, subscriptionSyncInput) ([]domain.SyncResult, error) {
	app := deps.App
	return func(ctx context.Context, input subscriptionSyncInput) ([]domain.SyncResult, error) {
		if app.SyncAllSubscriptionsHandler == nil {
			return nil, errNoStore
		}
		if input.ID != "" {
			result, err := app.SyncSubscriptionHandler.Handle(ctx, input.ID)
			if err != nil {
				return nil, err
			}
			return []domain.SyncResult{result}, nil
		}
		return app.SyncAllSubscriptionsHandler.Handle(ctx, commands.SyncAllSubscriptionsCommand{Force: input.Force})
	}
}
