package cli

import (
	"context"
	"time"

	internalApp "github.com/Owl23007/synapse-android-sub000/internal/app"
	"github.com/Owl23007/synapse-android-sub000/internal/calendar/application/commands"
	"github.com/Owl23007/synapse-android-sub000/internal/calendar/application/queries"
	calendarDomain "github.com/Owl23007/synapse-android-sub000/internal/calendar/domain"
	"github.com/Owl23007/synapse-android-sub000/internal/calendar/infrastructure/caldav"
	chatApp "github.com/Owl23007/synapse-android-sub000/internal/chat/application"
	reminderApp "github.com/Owl23007/synapse-android-sub000/internal/reminders/application"
	reminderDomain "github.com/Owl23007/synapse-android-sub000/internal/reminders/domain"
	"github.com/Owl23007/synapse-android-sub000/pkg/observability"
)

// ArmedLister lists the alarms currently armed.
type ArmedLister interface {
	ListArmed(ctx context.Context) ([]reminderDomain.Alarm, error)
}

// App holds the CLI application dependencies.
type App struct {
	// Schedule Command Handlers
	CreateScheduleHandler  *commands.CreateScheduleHandler
	UpdateScheduleHandler  *commands.UpdateScheduleHandler
	DeleteScheduleHandler  *commands.DeleteScheduleHandler
	ImportSchedulesHandler *commands.ImportSchedulesHandler
	ExportSchedulesHandler *commands.ExportSchedulesHandler

	// Subscription Command Handlers
	AddSubscriptionHandler      *commands.AddSubscriptionHandler
	RemoveSubscriptionHandler   *commands.RemoveSubscriptionHandler
	SyncSubscriptionHandler     *commands.SyncSubscriptionHandler
	SyncAllSubscriptionsHandler *commands.SyncAllSubscriptionsHandler
	SubscriptionFetcher         commands.Fetcher

	// Query Handlers
	ListSchedulesHandler     *queries.ListSchedulesHandler
	ListSubscriptionsHandler *queries.ListSubscriptionsHandler

	// Schedules is read directly by commands that need domain objects.
	Schedules calendarDomain.ScheduleRepository

	// Reminders
	BootRecovery *reminderApp.BootRecovery
	Alarms       ArmedLister

	// Optional adapters
	ChatPipeline *chatApp.Pipeline
	CalDAV       *caldav.Syncer

	// Health checks the store and alarm backends.
	Health *observability.HealthRegistry

	// Location is the zone local date-times are read in.
	Location *time.Location
}

// NewAppFromContainer maps the container's handlers onto an App.
func NewAppFromContainer(c *internalApp.Container) *App {
	return &App{
		CreateScheduleHandler:       c.CreateScheduleHandler,
		UpdateScheduleHandler:       c.UpdateScheduleHandler,
		DeleteScheduleHandler:       c.DeleteScheduleHandler,
		ImportSchedulesHandler:      c.ImportSchedulesHandler,
		ExportSchedulesHandler:      c.ExportSchedulesHandler,
		AddSubscriptionHandler:      c.AddSubscriptionHandler,
		RemoveSubscriptionHandler:   c.RemoveSubscriptionHandler,
		SyncSubscriptionHandler:     c.SyncSubscriptionHandler,
		SyncAllSubscriptionsHandler: c.SyncAllSubscriptionsHandler,
		SubscriptionFetcher:         c.Fetcher,
		ListSchedulesHandler:        c.ListSchedulesHandler,
		ListSubscriptionsHandler:    c.ListSubscriptionsHandler,
		Schedules:                   c.ScheduleRepo,
		BootRecovery:                c.BootRecovery,
		Alarms:                      c.Alarms,
		ChatPipeline:                c.ChatPipeline,
		CalDAV:                      c.CalDAV,
		Health:                      c.HealthRegistry(),
		Location:                    c.Config.Location(),
	}
}

// Zone returns the configured location, defaulting to the process zone.
func (a *App) Zone() *time.Location {
	if a == nil || a.Location == nil {
		return time.Local
	}
	return a.Location
}

// app is the global CLI application instance
var app *App

// SetApp sets the global CLI application instance.
func SetApp(a *App) {
	app = a
}

// GetApp returns the global CLI application instance.
func GetApp() *App {
	return app
}
