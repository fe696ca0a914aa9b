package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/automaxprocs/maxprocs"
	"golang.org/x/sync/errgroup"

	"github.com/Owl23007/synapse-android-sub000/internal/app"
	"github.com/Owl23007/synapse-android-sub000/internal/shared/infrastructure/eventbus"
	"github.com/Owl23007/synapse-android-sub000/pkg/config"
	"github.com/Owl23007/synapse-android-sub000/pkg/observability"
)

func main() {
	logger := observability.LoggerFromEnv("synapse-worker")
	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		logger.Debug("maxprocs", "message", format, "args", args)
	})); err != nil {
		logger.Warn("failed to set GOMAXPROCS", "error", err)
	}

	logger.Info("starting synapse worker")

	// Create context with cancellation
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	metrics := observability.NewPrometheusMetrics()
	container, err := app.NewContainer(ctx, cfg, logger, app.WithMetrics(metrics))
	if err != nil {
		logger.Error("failed to initialize container", "error", err)
		os.Exit(1)
	}
	defer container.Close()

	// Re-arm every persisted reminder before anything can fire.
	if n, err := container.BootRecovery.Run(ctx); err != nil {
		logger.Error("reminder recovery failed", "error", err)
	} else {
		logger.Info("reminder recovery completed", "schedules", n)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return ignoreCanceled(container.Dispatcher.Run(gctx))
	})
	g.Go(func() error {
		return ignoreCanceled(container.SubscriptionSyncWorker.Run(gctx))
	})

	// With a broker, fired reminders come back through RabbitMQ instead of
	// the in-process bus.
	if container.UsesBroker {
		consumer, err := eventbus.NewRabbitMQConsumer(eventbus.RabbitMQConsumerConfig{
			URL:       cfg.RabbitMQURL,
			QueueName: eventbus.DefaultConsumerQueueName,
			Logger:    logger,
		}, nil)
		if err != nil {
			logger.Error("failed to start RabbitMQ consumer", "error", err)
			os.Exit(1)
		}
		defer consumer.Close()
		consumer.RegisterConsumer(container.FiredConsumer)
		g.Go(func() error {
			return ignoreCanceled(consumer.Start(gctx))
		})
	}

	if cfg.WorkerHealthAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/healthz", observability.LivenessHandler())
		mux.Handle("/readyz", container.HealthRegistry().ReadinessHandler())
		mux.Handle("/metrics", metrics.Handler())

		healthSrv := &http.Server{
			Addr:              cfg.WorkerHealthAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			logger.Info("health server starting", "addr", cfg.WorkerHealthAddr)
			if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return healthSrv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("worker stopped with error", "error", err)
		container.Close()
		os.Exit(1)
	}
	logger.Info("worker stopped")
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
