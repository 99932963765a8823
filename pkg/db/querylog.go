package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/gostly/gostly-backend/pkg/logger"
)

const defaultSlowQuery = 500 * time.Millisecond

// queryLogger adapts GORM's logger to pkg/logger. Statements are reduced to
// their leading verb and table so bound guest text never reaches the logs.
type queryLogger struct {
	logg  *logger.Logger
	slow  time.Duration
	level gormlogger.LogLevel
}

func newQueryLogger(logg *logger.Logger, slow time.Duration) gormlogger.Interface {
	if logg == nil {
		return gormlogger.Discard
	}
	if slow <= 0 {
		slow = defaultSlowQuery
	}
	return &queryLogger{logg: logg, slow: slow, level: gormlogger.Warn}
}

func (q *queryLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *q
	clone.level = level
	return &clone
}

func (q *queryLogger) Info(ctx context.Context, msg string, args ...any) {
	if q.level >= gormlogger.Info {
		q.logg.Debug(ctx, "gorm: "+fmt.Sprintf(msg, args...))
	}
}

func (q *queryLogger) Warn(ctx context.Context, msg string, args ...any) {
	if q.level >= gormlogger.Warn {
		q.logg.Warn(ctx, "gorm: "+fmt.Sprintf(msg, args...))
	}
}

func (q *queryLogger) Error(ctx context.Context, msg string, args ...any) {
	if q.level >= gormlogger.Error {
		q.logg.Error(ctx, "gorm", fmt.Errorf(msg, args...))
	}
}

// Trace reports slow statements only. Failed statements are logged by the
// caller with its own context.
func (q *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if q.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	if elapsed < q.slow {
		return
	}
	sql, rows := fc()
	q.logg.Warn(q.logg.WithFields(ctx, map[string]any{
		"statement":  statementShape(sql),
		"rows":       rows,
		"elapsed_ms": elapsed.Milliseconds(),
		"failed":     err != nil && !errors.Is(err, gorm.ErrRecordNotFound),
	}), "slow query")
}

// statementShape keeps the verb and the first table name of sql.
func statementShape(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return ""
	}
	verb := strings.ToUpper(fields[0])
	marker := map[string]string{"SELECT": "FROM", "DELETE": "FROM", "INSERT": "INTO", "UPDATE": ""}[verb]
	for i, f := range fields {
		if verb == "UPDATE" && i == 1 {
			return verb + " " + strings.Trim(f, `"`+"`")
		}
		if marker != "" && strings.EqualFold(f, marker) && i+1 < len(fields) {
			return verb + " " + strings.Trim(fields[i+1], `"`+"`")
		}
	}
	return verb
}
