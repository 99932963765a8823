package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/gostly/gostly-backend/pkg/logger"
)

const (
	defaultOutboxRetention = 14 * 24 * time.Hour
	defaultDLQRetention    = 90 * 24 * time.Hour
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPruner interface {
	DeleteSettledBefore(tx *gorm.DB, cutoff time.Time, terminalAttempts int) (int64, error)
}

type dlqPruner interface {
	DeleteFailedBefore(tx *gorm.DB, cutoff time.Time) (int64, error)
}

// RetentionParams configure the outbox pruning jobs.
type RetentionParams struct {
	Logger           *logger.Logger
	DB               txRunner
	Outbox           outboxPruner
	DLQ              dlqPruner
	OutboxRetention  time.Duration
	DLQRetention     time.Duration
	TerminalAttempts int
}

// NewOutboxRetentionJob removes delivered handoff events, and events that
// reached the attempt ceiling, once they are older than the retention window.
func NewOutboxRetentionJob(params RetentionParams) (Job, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	if params.TerminalAttempts <= 0 {
		return nil, fmt.Errorf("terminal attempts must be positive")
	}
	retention := params.OutboxRetention
	if retention <= 0 {
		retention = defaultOutboxRetention
	}
	return &outboxRetentionJob{
		logg:      params.Logger,
		db:        params.DB,
		repo:      params.Outbox,
		retention: retention,
		terminal:  params.TerminalAttempts,
		now:       time.Now,
	}, nil
}

// NewDLQRetentionJob removes dead letters older than the DLQ window.
func NewDLQRetentionJob(params RetentionParams) (Job, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	if params.DLQ == nil {
		return nil, fmt.Errorf("dlq repository required")
	}
	retention := params.DLQRetention
	if retention <= 0 {
		retention = defaultDLQRetention
	}
	return &dlqRetentionJob{
		logg:      params.Logger,
		db:        params.DB,
		repo:      params.DLQ,
		retention: retention,
		now:       time.Now,
	}, nil
}

func (p RetentionParams) validate() error {
	if p.Logger == nil {
		return fmt.Errorf("logger required")
	}
	if p.DB == nil {
		return fmt.Errorf("db runner required")
	}
	return nil
}

type outboxRetentionJob struct {
	logg      *logger.Logger
	db        txRunner
	repo      outboxPruner
	retention time.Duration
	terminal  int
	now       func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.repo.DeleteSettledBefore(tx, cutoff, j.terminal)
		deleted = rows
		return err
	})
	if err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	}), "outbox retention complete")
	return nil
}

type dlqRetentionJob struct {
	logg      *logger.Logger
	db        txRunner
	repo      dlqPruner
	retention time.Duration
	now       func() time.Time
}

func (j *dlqRetentionJob) Name() string { return "dlq-retention" }

func (j *dlqRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.repo.DeleteFailedBefore(tx, cutoff)
		deleted = rows
		return err
	})
	if err != nil {
		return fmt.Errorf("dlq retention: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	}), "dlq retention complete")
	return nil
}
