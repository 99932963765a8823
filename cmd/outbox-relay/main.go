package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gostly/gostly-backend/internal/cron"
	"github.com/gostly/gostly-backend/internal/notifications"
	"github.com/gostly/gostly-backend/pkg/config"
	"github.com/gostly/gostly-backend/pkg/db"
	"github.com/gostly/gostly-backend/pkg/logger"
	"github.com/gostly/gostly-backend/pkg/mailer"
	"github.com/gostly/gostly-backend/pkg/metrics"
	"github.com/gostly/gostly-backend/pkg/migrate"
	"github.com/gostly/gostly-backend/pkg/outbox"
	"github.com/gostly/gostly-backend/pkg/idempotency"
	"github.com/gostly/gostly-backend/pkg/redis"
)

const (
	handoffDedupeTTL     = 7 * 24 * time.Hour
	maintenanceLockKey   = "gostly:maintenance:%s"
	maintenanceLockLease = time.Hour
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "outbox-relay"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "outbox-relay"

	logg = logger.New(logger.Options{
		ServiceName: "outbox-relay",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	var guard *idempotency.Scope
	var lock cron.Lock = &cron.LocalLock{}
	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Warn(logg.WithField(context.Background(), "error", err.Error()), "redis unavailable, handoff emails are not deduplicated")
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		guard, err = idempotency.NewScope(redisClient, notifications.HandoffScope, handoffDedupeTTL)
		if err != nil {
			logg.Error(context.Background(), "failed to build idempotency guard", err)
			os.Exit(1)
		}
		lock, err = cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), maintenanceLockLease)
		if err != nil {
			logg.Error(context.Background(), "failed to build maintenance lock", err)
			os.Exit(1)
		}
	}

	reg := prometheus.NewRegistry()
	jobMetrics := metrics.NewJobMetrics(reg)

	mail := mailer.New(context.Background(), cfg.Mail, logg)
	var relay *notifications.Relay
	if guard != nil {
		relay, err = notifications.NewHandoffRelay(cfg.Outbox, dbClient, mail, guard, jobMetrics, logg)
	} else {
		relay, err = notifications.NewHandoffRelay(cfg.Outbox, dbClient, mail, nil, jobMetrics, logg)
	}
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox relay", err)
		os.Exit(1)
	}

	maintenance, err := newMaintenance(cfg.Outbox, dbClient, lock, jobMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create maintenance service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})

	metricsServer := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "metrics server stopped", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	go func() {
		if err := maintenance.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(ctx, "maintenance stopped unexpectedly", err)
		}
	}()

	logg.Info(ctx, "starting outbox relay")

	if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox relay stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "outbox relay shutting down gracefully")
}

func newMaintenance(cfg config.OutboxConfig, client *db.Client, lock cron.Lock, jobMetrics *metrics.JobMetrics, logg *logger.Logger) (*cron.Service, error) {
	params := cron.RetentionParams{
		Logger:           logg,
		DB:               client,
		Outbox:           outbox.NewRepository(client.DB()),
		DLQ:              outbox.NewDLQRepository(client.DB()),
		OutboxRetention:  cfg.Retention,
		DLQRetention:     cfg.DLQRetention,
		TerminalAttempts: cfg.MaxAttempts,
	}
	outboxJob, err := cron.NewOutboxRetentionJob(params)
	if err != nil {
		return nil, err
	}
	dlqJob, err := cron.NewDLQRetentionJob(params)
	if err != nil {
		return nil, err
	}
	return cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(outboxJob, dlqJob),
		Lock:     lock,
		Metrics:  jobMetrics,
		Interval: cfg.MaintenanceInterval,
	})
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(maintenanceLockKey, env)
}
