// Package wal implements the Write-Ahead Buffer (spec §4.B): a durable,
// TTL-bounded tail of in-flight Normal messages that lets the orchestrator
// acknowledge a producer before the database write commits, and that can
// be replayed after a crash.
package wal

import (
	"context"
	"time"

	"github.com/flare-im/message-core/internal/model"
	"github.com/flare-im/message-core/pkg/cache"
	"github.com/flare-im/message-core/pkg/errors"
	"github.com/flare-im/message-core/pkg/logger"
)

// DefaultTTL bounds how long an entry survives if it is never removed.
// This is a safety net, not the recovery mechanism: replay is driven by
// the orchestrator's restart path, not by TTL expiry.
const DefaultTTL = 24 * time.Hour

// Entry is one in-flight message recorded in the buffer.
type Entry struct {
	Message   model.Message `json:"message"`
	AppendedAt time.Time    `json:"appended_at"`
}

// Index is the set of message IDs currently in the buffer, maintained
// alongside individual entries so Replay can enumerate them without a
// backing store that supports key scanning (the cache interface doesn't).
type Index interface {
	Add(ctx context.Context, messageID string) error
	Remove(ctx context.Context, messageID string) error
	List(ctx context.Context) ([]string, error)
}

// Buffer is the Write-Ahead Buffer. It is backed by pkg/cache for entry
// storage and an Index for enumeration on replay.
type Buffer struct {
	cache cache.Cache
	index Index
	ttl   time.Duration
}

// New builds a Buffer. A zero ttl uses DefaultTTL.
func New(c cache.Cache, index Index, ttl time.Duration) *Buffer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Buffer{cache: c, index: index, ttl: ttl}
}

func entryKey(messageID string) string {
	return "wal:entry:" + messageID
}

// Append durably records msg. Per spec §4.B, F calls this before
// enqueueing to the storage queue.
func (b *Buffer) Append(ctx context.Context, msg model.Message) error {
	if msg.ID == "" {
		return errors.New(errors.CodeInvalidArgument, "message id is required for wal append", nil)
	}

	entry := Entry{Message: msg, AppendedAt: time.Now()}
	if err := b.cache.Set(ctx, entryKey(msg.ID), entry, b.ttl); err != nil {
		return errors.Wrap(err, "failed to append to wal")
	}
	if err := b.index.Add(ctx, msg.ID); err != nil {
		logger.L().WarnContext(ctx, "wal index add failed, replay coverage degraded", "message_id", msg.ID, "error", err)
	}
	return nil
}

// Remove drops messageID from the buffer. F calls this after the storage
// queue acknowledges; a failure here is benign since the next restart's
// replay re-submits and downstream idempotency absorbs the duplicate.
func (b *Buffer) Remove(ctx context.Context, messageID string) error {
	if err := b.cache.Delete(ctx, entryKey(messageID)); err != nil {
		return errors.Wrap(err, "failed to remove wal entry")
	}
	if err := b.index.Remove(ctx, messageID); err != nil {
		logger.L().WarnContext(ctx, "wal index remove failed", "message_id", messageID, "error", err)
	}
	return nil
}

// Replay yields every un-removed entry, for re-submission through the
// publisher on orchestrator restart.
func (b *Buffer) Replay(ctx context.Context) ([]Entry, error) {
	ids, err := b.index.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list wal index")
	}

	entries := make([]Entry, 0, len(ids))
	for _, id := range ids {
		var entry Entry
		if err := b.cache.Get(ctx, entryKey(id), &entry); err != nil {
			// Entry expired or was removed without the index being
			// updated; drop it from the index and move on rather than
			// fail the whole replay.
			_ = b.index.Remove(ctx, id)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
