// Package sequence implements the Sequence Allocator (spec §4.A): strictly
// increasing, per-conversation seq assignment with a cache fast path and a
// database row-lock fallback.
package sequence

import (
	"context"

	"github.com/flare-im/message-core/pkg/cache"
	"github.com/flare-im/message-core/pkg/database/sql"
	"github.com/flare-im/message-core/pkg/errors"
	"github.com/flare-im/message-core/pkg/logger"
	"gorm.io/gorm/clause"
)

// Allocator assigns monotonically increasing seq values within a
// conversation_id. Successive calls for the same conversation return
// strictly increasing values; concurrent callers are serialized by the
// backing cache's atomic Incr.
type Allocator struct {
	cache cache.Cache
	db    sql.SQL
}

// New builds an Allocator. db may be nil, in which case the fallback path
// is unavailable and a cache failure surfaces directly to the caller.
func New(c cache.Cache, db sql.SQL) *Allocator {
	return &Allocator{cache: c, db: db}
}

func seqKey(conversationID string) string {
	return "seq:" + conversationID
}

// messageRow is the minimal shape needed for the fallback's
// SELECT max(seq) ... FOR UPDATE query; it deliberately does not import
// internal/model to avoid a cache<->model dependency cycle, since model
// may eventually want to depend on sequence for defaults.
type messageRow struct {
	Seq int64
}

// Allocate returns the next seq for conversationID. The fast path is a
// single atomic INCR; if that fails, it falls back to a row-locked MAX
// query against the messages table and reseeds the fast-path counter with
// SETNX-equivalent semantics so later callers resume on the fast path.
func (a *Allocator) Allocate(ctx context.Context, conversationID string) (int64, error) {
	if conversationID == "" {
		return 0, errors.New(errors.CodeInvalidArgument, "conversation_id is required", nil)
	}

	seq, err := a.cache.Incr(ctx, seqKey(conversationID), 1)
	if err == nil {
		return seq, nil
	}

	logger.L().WarnContext(ctx, "sequence fast path failed, falling back to database",
		"conversation_id", conversationID, "error", err)

	if a.db == nil {
		return 0, errors.New(errors.CodeUnavailable, "sequence allocation unavailable", err)
	}

	seq, fallbackErr := a.allocateFromDB(ctx, conversationID)
	if fallbackErr != nil {
		return 0, errors.New(errors.CodeUnavailable, "sequence allocation failed on both paths", fallbackErr)
	}

	a.reseed(ctx, conversationID, seq)
	return seq, nil
}

func (a *Allocator) allocateFromDB(ctx context.Context, conversationID string) (int64, error) {
	var next int64
	tx := a.db.Get(ctx).Begin()
	if tx.Error != nil {
		return 0, tx.Error
	}

	err := func() error {
		var row messageRow
		err := tx.Table("messages").
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("COALESCE(MAX(seq), 0) AS seq").
			Where("conversation_id = ?", conversationID).
			Scan(&row).Error
		if err != nil {
			return err
		}
		next = row.Seq + 1
		return nil
	}()

	if err != nil {
		tx.Rollback()
		return 0, err
	}
	if err := tx.Commit().Error; err != nil {
		return 0, err
	}
	return next, nil
}

// reseed attempts to make the cache counter agree with the database-derived
// value so future callers resume on the fast path. It is best-effort: a
// failure here only costs a repeated fallback on the next call, it never
// loses allocations.
func (a *Allocator) reseed(ctx context.Context, conversationID string, dbSeq int64) {
	key := seqKey(conversationID)
	if err := a.cache.Set(ctx, key, dbSeq, 0); err != nil {
		logger.L().WarnContext(ctx, "failed to reseed sequence cache", "conversation_id", conversationID, "error", err)
	}
}
