package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/gostly/gostly-backend/api/routes"
	"github.com/gostly/gostly-backend/internal/billing"
	"github.com/gostly/gostly-backend/internal/conversations"
	"github.com/gostly/gostly-backend/internal/inbound"
	"github.com/gostly/gostly-backend/internal/notifications"
	"github.com/gostly/gostly-backend/internal/properties"
	"github.com/gostly/gostly-backend/internal/reply"
	"github.com/gostly/gostly-backend/internal/usage"
	stripewebhook "github.com/gostly/gostly-backend/internal/webhooks/stripe"
	twiliowebhook "github.com/gostly/gostly-backend/internal/webhooks/twilio"
	"github.com/gostly/gostly-backend/pkg/config"
	"github.com/gostly/gostly-backend/pkg/db"
	"github.com/gostly/gostly-backend/pkg/logger"
	"github.com/gostly/gostly-backend/pkg/mailer"
	"github.com/gostly/gostly-backend/pkg/metrics"
	"github.com/gostly/gostly-backend/pkg/migrate"
	"github.com/gostly/gostly-backend/pkg/openai"
	"github.com/gostly/gostly-backend/pkg/outbox"
	"github.com/gostly/gostly-backend/pkg/idempotency"
	"github.com/gostly/gostly-backend/pkg/redis"
	"github.com/gostly/gostly-backend/pkg/stripe"
	"github.com/gostly/gostly-backend/pkg/tasks"
)

const (
	stripeEventTTL   = 72 * time.Hour
	stripeEventScope = "stripe-webhook"
	handoffDedupeTTL = 7 * 24 * time.Hour
	shutdownTimeout  = 20 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	pipelineMetrics := metrics.NewPipelineMetrics(reg)
	jobMetrics := metrics.NewJobMetrics(reg)

	runner := tasks.NewRunner(tasks.Options{
		Workers:   cfg.Pipeline.TaskWorkers,
		QueueSize: cfg.Pipeline.TaskQueueSize,
		Attempts:  cfg.Pipeline.TaskAttempts,
		Timeout:   cfg.Pipeline.TaskTimeout,
		OnFailure: func(name string, _ error) { pipelineMetrics.IncSideEffectFailure(name) },
	}, logg)

	propertyService, err := properties.NewService(properties.NewRepository(dbClient.DB()))
	if err != nil {
		return err
	}
	billingRepo := billing.NewRepository(dbClient.DB())
	gate, err := usage.NewGate(usage.GateParams{Billing: billingRepo, Usage: usage.NewRepository(dbClient.DB())})
	if err != nil {
		return err
	}
	conversationService, err := conversations.NewService(conversations.ServiceParams{
		Repo:       conversations.NewRepository(dbClient.DB()),
		Properties: propertyService,
	})
	if err != nil {
		return err
	}
	notifier, err := notifications.NewNotifier(dbClient, outbox.NewService(outbox.NewRepository(dbClient.DB()), logg), logg)
	if err != nil {
		return err
	}

	generator, err := newGenerator(ctx, cfg.OpenAI, pipelineMetrics, logg)
	if err != nil {
		return err
	}

	pipeline, err := inbound.NewPipeline(inbound.Params{
		Options: inbound.Options{
			UsageIncrement: cfg.Pipeline.IncrementPerTurn,
			RequestTimeout: cfg.Pipeline.RequestTimeout,
		},
		Resolver:  propertyService,
		Gate:      gate,
		Generator: generator,
		Notifier:  notifier,
		Log:       conversationService,
		Tasks:     runner,
		Metrics:   pipelineMetrics,
		Logger:    logg,
	})
	if err != nil {
		return err
	}

	senderLimit := cfg.Pipeline.SenderLimit
	if !cfg.Flags.SenderRateLimit {
		senderLimit = 0
	}
	whatsapp, err := twiliowebhook.NewService(twiliowebhook.ServiceParams{
		Options: twiliowebhook.Options{
			DedupeTTL:    cfg.Pipeline.DedupeTTL,
			PendingTTL:   cfg.Pipeline.RequestTimeout + time.Minute,
			ReplayWait:   cfg.Pipeline.ReplayWait,
			SenderLimit:  senderLimit,
			SenderWindow: cfg.Pipeline.SenderWindow,
		},
		Pipeline: pipeline,
		Replies:  redisClient,
		Limiter:  redisClient,
		Logger:   logg,
	})
	if err != nil {
		return err
	}

	deps := routes.Dependencies{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		Redis:         redisClient,
		Gatherer:      reg,
		Properties:    propertyService,
		Conversations: conversationService,
		Usage:         gate,
		WhatsApp:      whatsapp,
	}

	billingParams := billing.ServiceParams{Repo: billingRepo}
	if stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg); err != nil {
		logg.Warn(logg.WithField(ctx, "error", err.Error()), "stripe disabled")
	} else {
		stripeService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
			BillingRepo:       billingRepo,
			TransactionRunner: dbClient,
			Logger:            logg,
		})
		if err != nil {
			return err
		}
		guard, err := idempotency.NewScope(redisClient, stripeEventScope, stripeEventTTL)
		if err != nil {
			return err
		}
		deps.StripeClient = stripeClient
		deps.StripeService = stripeService
		deps.StripeGuard = guard
		billingParams.Canceler = stripeClient
	}
	deps.Billing, err = billing.NewService(billingParams)
	if err != nil {
		return err
	}

	relayDone := make(chan error, 1)
	if cfg.Flags.InProcessRelay {
		guard, err := idempotency.NewScope(redisClient, notifications.HandoffScope, handoffDedupeTTL)
		if err != nil {
			return err
		}
		relay, err := notifications.NewHandoffRelay(cfg.Outbox, dbClient, mailer.New(ctx, cfg.Mail, logg), guard, jobMetrics, logg)
		if err != nil {
			return err
		}
		go func() { relayDone <- relay.Run(ctx) }()
	} else {
		relayDone <- nil
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.Pipeline.RequestTimeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logCtx := logg.WithFields(ctx, map[string]any{
		"env":          cfg.App.Env,
		"addr":         addr,
		"inline_relay": cfg.Flags.InProcessRelay,
	})
	logg.Info(logCtx, "starting api server")

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.ListenAndServe() }()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			stop()
			return multierr.Append(err, runner.Shutdown(context.Background()))
		}
	case <-ctx.Done():
	}

	logg.Info(logCtx, "api server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err = multierr.Combine(
		server.Shutdown(shutdownCtx),
		runner.Shutdown(shutdownCtx),
	)
	if relayErr := <-relayDone; relayErr != nil && !errors.Is(relayErr, context.Canceled) {
		err = multierr.Append(err, relayErr)
	}
	return err
}

func newGenerator(ctx context.Context, cfg config.OpenAIConfig, observer reply.Observer, logg *logger.Logger) (*reply.Generator, error) {
	truncator, err := reply.NewTruncator(cfg.KnowledgeTokens)
	if err != nil {
		return nil, err
	}
	params := reply.GeneratorParams{
		Truncator: truncator,
		Observer:  observer,
		Logger:    logg,
	}
	client := openai.NewClient(cfg)
	if client.Configured() {
		params.Completer = client
	} else {
		logg.Warn(ctx, "completion api key missing, every reply will use the technical fallback")
	}
	return reply.NewGenerator(params), nil
}
