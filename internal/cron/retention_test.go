package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/gostly/gostly-backend/pkg/logger"
)

type fakeOutboxPruner struct {
	cutoff   time.Time
	terminal int
	called   int
	err      error
}

func (f *fakeOutboxPruner) DeleteSettledBefore(_ *gorm.DB, cutoff time.Time, terminalAttempts int) (int64, error) {
	f.called++
	f.cutoff = cutoff
	f.terminal = terminalAttempts
	return 3, f.err
}

type fakeDLQPruner struct {
	cutoff time.Time
	err    error
}

func (f *fakeDLQPruner) DeleteFailedBefore(_ *gorm.DB, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return 1, f.err
}

type passthroughTx struct{}

func (passthroughTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func retentionParams() RetentionParams {
	return RetentionParams{
		Logger:           logger.New(logger.Options{ServiceName: "test"}),
		DB:               passthroughTx{},
		TerminalAttempts: 8,
	}
}

func TestOutboxRetentionUsesWindowAndCeiling(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := &fakeOutboxPruner{}
	params := retentionParams()
	params.Outbox = repo
	jobIface, err := NewOutboxRetentionJob(params)
	if err != nil {
		t.Fatalf("NewOutboxRetentionJob: %v", err)
	}
	job := jobIface.(*outboxRetentionJob)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := now.Add(-defaultOutboxRetention); !repo.cutoff.Equal(want) {
		t.Fatalf("expected cutoff %s, got %s", want, repo.cutoff)
	}
	if repo.terminal != 8 || repo.called != 1 {
		t.Fatalf("unexpected call: terminal=%d called=%d", repo.terminal, repo.called)
	}
}

func TestOutboxRetentionPropagatesError(t *testing.T) {
	params := retentionParams()
	params.Outbox = &fakeOutboxPruner{err: errors.New("boom")}
	job, err := NewOutboxRetentionJob(params)
	if err != nil {
		t.Fatalf("NewOutboxRetentionJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestOutboxRetentionRequiresCeiling(t *testing.T) {
	params := retentionParams()
	params.Outbox = &fakeOutboxPruner{}
	params.TerminalAttempts = 0
	if _, err := NewOutboxRetentionJob(params); err == nil {
		t.Fatal("expected zero terminal attempts to fail")
	}
}

func TestDLQRetentionHonoursCustomWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	repo := &fakeDLQPruner{}
	params := retentionParams()
	params.DLQ = repo
	params.DLQRetention = 48 * time.Hour
	jobIface, err := NewDLQRetentionJob(params)
	if err != nil {
		t.Fatalf("NewDLQRetentionJob: %v", err)
	}
	job := jobIface.(*dlqRetentionJob)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := now.Add(-48 * time.Hour); !repo.cutoff.Equal(want) {
		t.Fatalf("expected cutoff %s, got %s", want, repo.cutoff)
	}
}
