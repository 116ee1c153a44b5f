package database

import (
	"context"
	"time"

	"github.com/flare-im/message-core/pkg/logger"
	"gorm.io/gorm"
)

// SQL is the minimal connection surface an instrumented wrapper needs;
// pkg/database/sql.SQL satisfies it.
type SQL interface {
	Get(ctx context.Context) *gorm.DB
	GetShard(ctx context.Context, key string) (*gorm.DB, error)
	Close() error
}

// InstrumentedManager wraps a SQL connection manager to log shard
// resolution failures and connection teardown.
type InstrumentedManager struct {
	next SQL
}

func NewInstrumentedManager(next SQL) *InstrumentedManager {
	return &InstrumentedManager{next: next}
}

func (m *InstrumentedManager) Get(ctx context.Context) *gorm.DB {
	return m.next.Get(ctx)
}

func (m *InstrumentedManager) GetShard(ctx context.Context, key string) (*gorm.DB, error) {
	start := time.Now()

	db, err := m.next.GetShard(ctx, key)
	duration := time.Since(start)

	if err != nil {
		logger.L().ErrorContext(ctx, "failed to resolve shard", "key", key, "error", err, "duration", duration)
		return nil, err
	}
	return db, nil
}

func (m *InstrumentedManager) Close() error {
	logger.L().Info("closing database connections")
	return m.next.Close()
}
