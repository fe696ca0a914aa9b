package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Owl23007/synapse-android-sub000/internal/calendar/application/commands"
	"github.com/Owl23007/synapse-android-sub000/internal/calendar/application/queries"
	calendarWorkers "github.com/Owl23007/synapse-android-sub000/internal/calendar/application/workers"
	calendarDomain "github.com/Owl23007/synapse-android-sub000/internal/calendar/domain"
	"github.com/Owl23007/synapse-android-sub000/internal/calendar/infrastructure/caldav"
	"github.com/Owl23007/synapse-android-sub000/internal/calendar/infrastructure/icalendar"
	"github.com/Owl23007/synapse-android-sub000/internal/calendar/infrastructure/subscription"
	chatApp "github.com/Owl23007/synapse-android-sub000/internal/chat/application"
	"github.com/Owl23007/synapse-android-sub000/internal/chat/infrastructure/httpapi"
	reminderApp "github.com/Owl23007/synapse-android-sub000/internal/reminders/application"
	reminderDomain "github.com/Owl23007/synapse-android-sub000/internal/reminders/domain"
	"github.com/Owl23007/synapse-android-sub000/internal/reminders/infrastructure/memory"
	"github.com/Owl23007/synapse-android-sub000/internal/reminders/infrastructure/redisstore"
	sharedApplication "github.com/Owl23007/synapse-android-sub000/internal/shared/application"
	"github.com/Owl23007/synapse-android-sub000/internal/shared/infrastructure/database"
	"github.com/Owl23007/synapse-android-sub000/internal/shared/infrastructure/eventbus"
	"github.com/Owl23007/synapse-android-sub000/pkg/config"
	"github.com/Owl23007/synapse-android-sub000/pkg/observability"
)

// AlarmStore is what the container needs from an alarm adapter: the
// platform port, the guard and the dispatcher's due queue.
type AlarmStore interface {
	reminderDomain.AlarmService
	reminderDomain.Guard
	reminderDomain.DueStore
	ListArmed(ctx context.Context) ([]reminderDomain.Alarm, error)
}

// Container holds all application dependencies.
type Container struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics observability.Metrics

	// Storage
	DB          database.Connection
	RedisClient *redis.Client

	// Repositories
	ScheduleRepo     calendarDomain.ScheduleRepository
	SubscriptionRepo calendarDomain.SubscriptionRepository
	UnitOfWork       sharedApplication.UnitOfWork

	// Events. UsesBroker is set when EventPublisher is RabbitMQ; otherwise
	// events go to the in-process bus.
	EventPublisher    eventbus.Publisher
	InProcessEventBus *eventbus.InProcessEventBus
	UsesBroker        bool

	// Calendar adapters
	Codec   *icalendar.Codec
	Fetcher *subscription.Fetcher
	CalDAV  *caldav.Syncer

	// Reminders
	Alarms            AlarmStore
	ReminderScheduler *reminderApp.Scheduler
	BootRecovery      *reminderApp.BootRecovery
	Dispatcher        *reminderApp.Dispatcher
	FiredConsumer     *reminderApp.FiredConsumer

	// Schedule command handlers
	CreateScheduleHandler  *commands.CreateScheduleHandler
	UpdateScheduleHandler  *commands.UpdateScheduleHandler
	DeleteScheduleHandler  *commands.DeleteScheduleHandler
	ImportSchedulesHandler *commands.ImportSchedulesHandler
	ExportSchedulesHandler *commands.ExportSchedulesHandler

	// Subscription command handlers
	AddSubscriptionHandler      *commands.AddSubscriptionHandler
	RemoveSubscriptionHandler   *commands.RemoveSubscriptionHandler
	SyncSubscriptionHandler     *commands.SyncSubscriptionHandler
	SyncAllSubscriptionsHandler *commands.SyncAllSubscriptionsHandler

	// Query handlers
	ListSchedulesHandler     *queries.ListSchedulesHandler
	ListSubscriptionsHandler *queries.ListSubscriptionsHandler

	// Workers
	SubscriptionSyncWorker *calendarWorkers.SubscriptionSyncWorker

	// Chat is nil unless CHAT_ENDPOINT is set.
	ChatPipeline *chatApp.Pipeline
}

// Option customises a container.
type Option func(*Container)

// WithMetrics sets the metrics sink shared by every component.
func WithMetrics(m observability.Metrics) Option {
	return func(c *Container) { c.Metrics = m }
}

// WithAlarmStore replaces the alarm adapter chosen from the configuration.
func WithAlarmStore(store AlarmStore) Option {
	return func(c *Container) { c.Alarms = store }
}

// NewContainer creates and wires all dependencies. An empty DATABASE_URL
// selects local mode: SQLite, in-memory alarms unless REDIS_URL is set and
// the in-process event bus.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Container, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(c)
	}

	conn, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	c.DB = conn

	repos, err := NewRepositoryFactory(conn).Build()
	if err != nil {
		c.Close()
		return nil, err
	}
	c.ScheduleRepo = repos.Schedules
	c.SubscriptionRepo = repos.Subscriptions
	c.UnitOfWork = repos.UnitOfWork

	if c.Alarms == nil {
		if err := c.initAlarms(ctx); err != nil {
			c.Close()
			return nil, err
		}
	}
	if err := c.initEvents(); err != nil {
		c.Close()
		return nil, err
	}

	c.Codec = icalendar.NewCodec(cfg.Location(), logger)
	fetcherConfig := subscription.DefaultConfig()
	fetcherConfig.ConnectTimeout = cfg.SubscriptionTimeout
	fetcherConfig.ReadTimeout = cfg.SubscriptionTimeout
	c.Fetcher = subscription.NewFetcher(nil, fetcherConfig, logger, c.Metrics)

	c.initReminders()
	c.initCommands()

	c.ListSchedulesHandler = queries.NewListSchedulesHandler(c.ScheduleRepo)
	c.ListSubscriptionsHandler = queries.NewListSubscriptionsHandler(c.SubscriptionRepo)

	c.SubscriptionSyncWorker = calendarWorkers.NewSubscriptionSyncWorker(
		c.SyncAllSubscriptionsHandler,
		calendarWorkers.SubscriptionSyncWorkerConfig{
			Schedule:   cfg.SubscriptionSyncSchedule,
			RunOnStart: true,
		},
		logger,
		c.Metrics,
	)

	if cfg.CalDAVURL != "" {
		c.CalDAV = caldav.NewSyncer(caldav.Config{
			BaseURL:      cfg.CalDAVURL,
			Username:     cfg.CalDAVUsername,
			Password:     cfg.CalDAVPassword,
			CalendarPath: cfg.CalDAVCalendarPath,
		}, c.Codec, logger)
	}

	if cfg.ChatEndpoint != "" {
		chatConfig := httpapi.DefaultConfig()
		chatConfig.Endpoint = cfg.ChatEndpoint
		chatConfig.Token = cfg.ChatToken
		chatConfig.Model = cfg.ChatModel
		client, err := httpapi.NewClient(chatConfig, nil, logger)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to create chat client: %w", err)
		}
		c.ChatPipeline = chatApp.NewPipeline(client, c.CreateScheduleHandler, cfg.Location(), logger, c.Metrics)
	}

	logger.Info("container initialized",
		"driver", conn.Driver().String(),
		"local_mode", cfg.LocalMode,
		"broker", c.UsesBroker,
		"redis", c.RedisClient != nil,
	)
	return c, nil
}

// initAlarms connects the Redis alarm store, falling back to memory in
// local and development mode.
func (c *Container) initAlarms(ctx context.Context) error {
	cfg := c.Config
	if cfg.RedisURL != "" {
		client, err := redisstore.NewClient(ctx, cfg.RedisURL)
		if err == nil {
			c.RedisClient = client
			c.Alarms = redisstore.NewAlarmService(client, cfg.ReminderExactAlarms, cfg.ReminderGuardWindow)
			c.Logger.Info("connected to Redis")
			return nil
		}
		if !cfg.IsDevelopment() && !cfg.LocalMode {
			return err
		}
		c.Logger.Warn("Redis not available, reminders will use in-memory alarms", "error", err)
	}

	alarms := memory.NewAlarmService()
	alarms.SetExactAllowed(cfg.ReminderExactAlarms)
	alarms.SetGuardTTL(cfg.ReminderGuardWindow)
	c.Alarms = alarms
	return nil
}

func (c *Container) initEvents() error {
	c.InProcessEventBus = eventbus.NewInProcessEventBus(c.Logger)
	c.EventPublisher = c.InProcessEventBus

	if c.Config.RabbitMQURL == "" {
		return nil
	}
	publisher, err := eventbus.NewRabbitMQPublisher(c.Config.RabbitMQURL, c.Logger)
	if err != nil {
		if !c.Config.IsDevelopment() && !c.Config.LocalMode {
			return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		c.Logger.Warn("RabbitMQ not available, using in-process event bus", "error", err)
		return nil
	}
	c.EventPublisher = publisher
	c.UsesBroker = true
	return nil
}

func (c *Container) initReminders() {
	cfg := c.Config
	c.ReminderScheduler = reminderApp.NewScheduler(
		c.Alarms,
		c.Alarms,
		reminderApp.SchedulerConfig{
			ExactAlarms: cfg.ReminderExactAlarms,
			GuardWindow: cfg.ReminderGuardWindow,
		},
		c.Logger,
		c.Metrics,
	)
	c.BootRecovery = reminderApp.NewBootRecovery(c.ScheduleRepo, c.ReminderScheduler, c.Logger)

	dispatcherConfig := reminderApp.DefaultDispatcherConfig()
	dispatcherConfig.GuardInterval = cfg.ReminderPollInterval
	dispatcherConfig.GuardWindow = cfg.ReminderGuardWindow
	c.Dispatcher = reminderApp.NewDispatcher(c.Alarms, c.EventPublisher, dispatcherConfig, c.Logger, c.Metrics)

	c.FiredConsumer = reminderApp.NewFiredConsumer(c.ScheduleRepo, nil, c.Logger, c.Metrics)
	c.InProcessEventBus.RegisterConsumer(c.FiredConsumer)
}

func (c *Container) initCommands() {
	schedules, subs := c.ScheduleRepo, c.SubscriptionRepo
	reminders, publisher, uow := c.ReminderScheduler, c.EventPublisher, c.UnitOfWork
	logger, metrics := c.Logger, c.Metrics

	c.CreateScheduleHandler = commands.NewCreateScheduleHandler(schedules, reminders, publisher, uow, logger)
	c.UpdateScheduleHandler = commands.NewUpdateScheduleHandler(schedules, reminders, publisher, uow, logger)
	c.DeleteScheduleHandler = commands.NewDeleteScheduleHandler(schedules, reminders, publisher, uow, logger)
	c.ImportSchedulesHandler = commands.NewImportSchedulesHandler(schedules, c.Codec, reminders, publisher, uow, logger, metrics)
	c.ExportSchedulesHandler = commands.NewExportSchedulesHandler(schedules, c.Codec, logger)

	c.AddSubscriptionHandler = commands.NewAddSubscriptionHandler(subs, c.Fetcher, logger)
	c.RemoveSubscriptionHandler = commands.NewRemoveSubscriptionHandler(subs, schedules, reminders, uow, logger)
	c.SyncSubscriptionHandler = commands.NewSyncSubscriptionHandler(subs, schedules, c.Fetcher, c.Codec, reminders, uow, logger, metrics)
	c.SyncAllSubscriptionsHandler = commands.NewSyncAllSubscriptionsHandler(subs, c.SyncSubscriptionHandler, logger)
}

// HealthRegistry returns checks for the database and, when configured, Redis.
func (c *Container) HealthRegistry() *observability.HealthRegistry {
	registry := observability.NewHealthRegistry(2 * time.Second)
	registry.Register(observability.Dependency{
		Name:     "database",
		Critical: true,
		Check:    c.DB.Ping,
	})
	if c.RedisClient != nil {
		registry.Register(observability.Dependency{
			Name:     "redis",
			Critical: true,
			Check: func(ctx context.Context) error {
				return c.RedisClient.Ping(ctx).Err()
			},
		})
	}
	return registry
}

// Close cleans up all resources.
func (c *Container) Close() {
	if c.SubscriptionSyncWorker != nil && c.SubscriptionSyncWorker.IsRunning() {
		c.SubscriptionSyncWorker.Stop()
	}
	if c.Dispatcher != nil && c.Dispatcher.IsRunning() {
		c.Dispatcher.Stop()
	}

	if c.EventPublisher != nil {
		if err := c.EventPublisher.Close(); err != nil {
			c.Logger.Warn("error closing event publisher", "error", err)
		}
	}

	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			c.Logger.Warn("error closing Redis connection", "error", err)
		} else {
			c.Logger.Info("Redis connection closed")
		}
	}

	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			c.Logger.Warn("error closing database connection", "error", err)
		} else {
			c.Logger.Info("database connection closed", "driver", c.DB.Driver().String())
		}
	}
}
