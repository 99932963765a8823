// Package dbtest opens throwaway sqlite databases for repository tests.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/gostly/gostly-backend/pkg/db"
	"github.com/gostly/gostly-backend/pkg/db/models"
)

// AllModels lists every table the service owns.
var AllModels = []any{
	&models.Property{},
	&models.BillingProfile{},
	&models.UsageMonthly{},
	&models.Message{},
	&models.OutboxEvent{},
	&models.OutboxDLQ{},
}

// New opens an isolated in-memory database with the schema migrated. A single
// pooled connection keeps concurrent callers serialized, matching row-level
// locking closely enough for upsert tests.
func New(tb testing.TB) *db.Client {
	tb.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		tb.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		tb.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(AllModels...); err != nil {
		tb.Fatalf("failed to migrate sqlite: %v", err)
	}
	return db.FromGorm(conn)
}
