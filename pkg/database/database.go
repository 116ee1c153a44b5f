// Package database defines the driver-agnostic surface shared by every
// database adapter in this module: driver name constants, the DB
// connection-manager interface decorators wrap, and a GORM logger that
// routes through pkg/logger instead of GORM's own stdout writer.
package database

import (
	"context"
	"time"

	"github.com/flare-im/message-core/pkg/logger"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Driver names recognized by the sql adapters.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// gormLogger adapts GORM's query logging to pkg/logger so slow queries and
// errors flow through the same structured sink as the rest of the service.
type gormLogger struct {
	slowThreshold time.Duration
}

// NewGORMLogger returns a GORM logger.Interface backed by pkg/logger.
func NewGORMLogger() gormlogger.Interface {
	return &gormLogger{slowThreshold: 200 * time.Millisecond}
}

func (l *gormLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface { return l }

func (l *gormLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	logger.L().InfoContext(ctx, msg, "args", args)
}

func (l *gormLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	logger.L().WarnContext(ctx, msg, "args", args)
}

func (l *gormLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	logger.L().ErrorContext(ctx, msg, "args", args)
}

func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()

	switch {
	case err != nil:
		logger.L().ErrorContext(ctx, "gorm query failed", "sql", sql, "rows", rows, "elapsed", elapsed, "error", err)
	case elapsed > l.slowThreshold:
		logger.L().WarnContext(ctx, "slow gorm query", "sql", sql, "rows", rows, "elapsed", elapsed)
	default:
		logger.L().DebugContext(ctx, "gorm query", "sql", sql, "rows", rows, "elapsed", elapsed)
	}
}
