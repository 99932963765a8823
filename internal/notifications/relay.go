package notifications

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gostly/gostly-backend/pkg/config"
	"github.com/gostly/gostly-backend/pkg/db/models"
	"github.com/gostly/gostly-backend/pkg/enums"
	"github.com/gostly/gostly-backend/pkg/logger"
	"github.com/gostly/gostly-backend/pkg/metrics"
	"github.com/gostly/gostly-backend/pkg/outbox"
	"github.com/gostly/gostly-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize       = 25
	defaultPollMs          = 1000
	defaultDeliveryTimeout = 15 * time.Second
	defaultMaxAttempts     = 8
	maxBackoff             = 10 * time.Second
	jitterWindow           = 250 * time.Millisecond

	relayJob = "outbox_relay"
)

var (
	jitterMu     sync.Mutex
	jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

// Dispatcher delivers a resolved event on one channel.
type Dispatcher interface {
	Dispatch(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error
}

type RelayParams struct {
	Config      config.OutboxConfig
	Logger      *logger.Logger
	DB          dbClient
	Repository  outboxRepository
	DLQ         dlqRepository
	Registry    registryResolver
	Dispatchers map[string]Dispatcher
	Metrics     *metrics.JobMetrics
}

// Relay drains outbox_events and hands rows to channel dispatchers. Transient
// failures bump attempt_count; terminal ones move the row to outbox_dlq.
type Relay struct {
	logg         *logger.Logger
	db           dbClient
	repo         outboxRepository
	dlq          dlqRepository
	registry     registryResolver
	dispatchers  map[string]Dispatcher
	metrics      *metrics.JobMetrics
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
	timeout      time.Duration
}

func NewRelay(params RelayParams) (*Relay, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Repository == nil {
		return nil, errors.New("outbox repository is required")
	}
	if params.DLQ == nil {
		return nil, errors.New("dlq repository is required")
	}
	if params.Registry == nil {
		return nil, errors.New("event registry is required")
	}
	if len(params.Dispatchers) == 0 {
		return nil, errors.New("at least one dispatcher is required")
	}

	batch := params.Config.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	pollMs := params.Config.PollIntervalMS
	if pollMs <= 0 {
		pollMs = defaultPollMs
	}
	maxAttempts := params.Config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	return &Relay{
		logg:         params.Logger,
		db:           params.DB,
		repo:         params.Repository,
		dlq:          params.DLQ,
		registry:     params.Registry,
		dispatchers:  params.Dispatchers,
		metrics:      params.Metrics,
		batchSize:    batch,
		maxAttempts:  maxAttempts,
		pollInterval: time.Duration(pollMs) * time.Millisecond,
		timeout:      defaultDeliveryTimeout,
	}, nil
}

// Run polls until ctx is canceled.
func (r *Relay) Run(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		r.logg.Error(ctx, "database ping failed", err)
		return fmt.Errorf("database ping failed: %w", err)
	}

	interval := r.pollInterval
	backoff := interval

	for {
		select {
		case <-ctx.Done():
			r.logg.Info(ctx, "outbox relay context canceled")
			return ctx.Err()
		default:
		}

		started := time.Now()
		processed, err := r.processBatch(ctx)
		if processed || err != nil {
			r.metrics.ObserveDuration(relayJob, time.Since(started))
		}
		if err != nil {
			r.metrics.IncFailure(relayJob)
			r.logg.Error(ctx, "outbox relay batch error", err)
			backoff = nextBackoff(backoff, interval, maxBackoff)
			if err := sleep(ctx, withJitter(backoff)); err != nil {
				return err
			}
			continue
		}

		backoff = interval
		if processed {
			r.metrics.IncSuccess(relayJob)
			continue
		}
		if err := sleep(ctx, withJitter(interval)); err != nil {
			return err
		}
	}
}

func (r *Relay) processBatch(ctx context.Context) (bool, error) {
	processed := false
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := r.repo.FetchUnpublishedForPublish(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}

		processed = true
		for _, event := range events {
			resolved, err := r.registry.Resolve(event)
			if err != nil {
				if markErr := r.handleTerminal(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, err, nil); markErr != nil {
					return markErr
				}
				continue
			}

			fields := r.eventFields(event, resolved.Envelope, resolved.Descriptor.Channel)
			if err := r.deliver(ctx, event, resolved); err != nil {
				var nonRetry registry.NonRetryableError
				if errors.As(err, &nonRetry) {
					if markErr := r.handleTerminal(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, err, fields); markErr != nil {
						return markErr
					}
					continue
				}

				nextAttempt := event.AttemptCount + 1
				fields["attempt_count"] = nextAttempt
				if nextAttempt >= r.maxAttempts {
					terminalErr := fmt.Errorf("max delivery attempts reached: %w", err)
					if markErr := r.handleTerminal(ctx, tx, event, enums.OutboxDLQReasonMaxAttempts, terminalErr, fields); markErr != nil {
						return markErr
					}
					continue
				}

				logCtx := r.logg.WithField(r.logg.WithFields(ctx, fields), "error", err.Error())
				r.logg.Warn(logCtx, "outbox delivery failed")
				if markErr := r.repo.MarkFailedTx(tx, event.ID, err); markErr != nil {
					return fmt.Errorf("mark failure %s: %w", event.ID, markErr)
				}
				continue
			}

			if markErr := r.repo.MarkPublishedTx(tx, event.ID); markErr != nil {
				return fmt.Errorf("mark published %s: %w", event.ID, markErr)
			}
			r.logg.Info(r.logg.WithFields(ctx, fields), "outbox event delivered")
		}
		return nil
	})
	return processed, err
}

func (r *Relay) deliver(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	dispatcher, ok := r.dispatchers[resolved.Descriptor.Channel]
	if !ok || dispatcher == nil {
		return registry.NewNonRetryableError(fmt.Errorf("no dispatcher for channel %s", resolved.Descriptor.Channel))
	}
	deliverCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return dispatcher.Dispatch(deliverCtx, event, resolved)
}

func (r *Relay) handleTerminal(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, err error, fields map[string]any) error {
	if fields == nil {
		fields = r.eventFields(event, outbox.PayloadEnvelope{}, "")
	}
	fields["error_reason"] = reason
	logCtx := r.logg.WithField(r.logg.WithFields(ctx, fields), "error", err.Error())
	r.logg.Warn(logCtx, "outbox event will not be retried")

	entry := event.DeadLetter(reason, err, time.Now())
	if dlqErr := r.dlq.InsertTx(tx, entry); dlqErr != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, dlqErr)
	}
	if markErr := r.repo.MarkTerminalTx(tx, event.ID, err, r.maxAttempts); markErr != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, markErr)
	}
	return nil
}

func (r *Relay) eventFields(event models.OutboxEvent, envelope outbox.PayloadEnvelope, channel string) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}
	if envelope.EventID != "" {
		fields["event_id"] = envelope.EventID
	}
	if channel != "" {
		fields["channel"] = channel
	}
	return fields
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	jitterMu.Lock()
	jitter := time.Duration(jitterSource.Int63n(int64(jitterWindow)))
	jitterMu.Unlock()
	return d + jitter
}
