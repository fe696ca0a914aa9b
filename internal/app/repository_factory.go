package app

import (
	"context"
	"fmt"
	"log/slog"

	calendarDomain "github.com/Owl23007/synapse-android-sub000/internal/calendar/domain"
	calendarPersistence "github.com/Owl23007/synapse-android-sub000/internal/calendar/infrastructure/persistence"
	sharedApplication "github.com/Owl23007/synapse-android-sub000/internal/shared/application"
	"github.com/Owl23007/synapse-android-sub000/internal/shared/infrastructure/database"
	_ "github.com/Owl23007/synapse-android-sub000/internal/shared/infrastructure/database/postgres" // Register PostgreSQL driver
	_ "github.com/Owl23007/synapse-android-sub000/internal/shared/infrastructure/database/sqlite"   // Register SQLite driver
	"github.com/Owl23007/synapse-android-sub000/internal/shared/infrastructure/migrations"
	"github.com/Owl23007/synapse-android-sub000/pkg/config"
)

// Repositories is the persistence layer built for one connection.
type Repositories struct {
	Schedules     calendarDomain.ScheduleRepository
	Subscriptions calendarDomain.SubscriptionRepository
	UnitOfWork    sharedApplication.UnitOfWork
}

// RepositoryFactory creates repositories based on the database driver.
type RepositoryFactory struct {
	conn   database.Connection
	driver database.Driver
}

// NewRepositoryFactory creates a new repository factory.
func NewRepositoryFactory(conn database.Connection) *RepositoryFactory {
	return &RepositoryFactory{
		conn:   conn,
		driver: conn.Driver(),
	}
}

// Build creates every repository for the configured driver. Queries are
// shared between drivers and rebound per call.
func (f *RepositoryFactory) Build() (Repositories, error) {
	if !f.driver.IsValid() {
		return Repositories{}, fmt.Errorf("unsupported driver: %s", f.driver)
	}
	return Repositories{
		Schedules:     calendarPersistence.NewScheduleRepository(f.conn),
		Subscriptions: calendarPersistence.NewSubscriptionRepository(f.conn),
		UnitOfWork:    database.NewUnitOfWork(f.conn),
	}, nil
}

// openDatabase connects to PostgreSQL when DATABASE_URL is set and to the
// SQLite file otherwise, then applies migrations.
func openDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (database.Connection, error) {
	dbConfig := database.Config{
		Driver:     database.Driver(cfg.DatabaseDriver),
		URL:        cfg.DatabaseURL,
		SQLitePath: cfg.SQLitePath,
	}
	conn, err := database.NewConnection(ctx, dbConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("running migrations", "driver", conn.Driver().String())
	if err := migrations.Run(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return conn, nil
}
