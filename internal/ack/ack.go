// Package ack implements the ACK Return Path (spec §4.K): a single queue
// consumer that folds persistence, delivery, client and read ACKs into
// per-recipient state, backed by a short-TTL hot cache plus a batched
// durable write with a short linger to absorb bursts.
package ack

import (
	"context"
	"sync"
	"time"

	"github.com/flare-im/message-core/internal/model"
	"github.com/flare-im/message-core/internal/storagewriter"
	"github.com/flare-im/message-core/pkg/cache"
	"github.com/flare-im/message-core/pkg/database/sql"
	"github.com/flare-im/message-core/pkg/errors"
	"github.com/flare-im/message-core/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
)

// HotStateTTL bounds how long the fast-path cache entry for a message's
// latest ACK survives.
const HotStateTTL = time.Hour

// LingerDefault is the default batching window before a buffered ACK
// batch is flushed to durable storage.
const LingerDefault = 100 * time.Millisecond

// Processor consumes AckEvents and applies them to hot and durable state.
type Processor struct {
	cache   cache.Cache
	db      sql.SQL
	metrics *metrics
	linger  time.Duration

	mu      sync.Mutex
	buffer  []model.AckEvent

	done chan struct{}
	stop chan struct{}
}

// New builds a Processor and starts its background flush loop. reg may be
// nil to skip Prometheus registration (e.g. in tests).
func New(c cache.Cache, db sql.SQL, reg prometheus.Registerer, linger time.Duration) *Processor {
	if linger <= 0 {
		linger = LingerDefault
	}
	p := &Processor{
		cache:   c,
		db:      db,
		metrics: newMetrics(reg),
		linger:  linger,
		done:    make(chan struct{}),
		stop:    make(chan struct{}),
	}
	go p.flushLoop()
	return p
}

// Handle records event's outcome in the hot cache immediately and queues
// it for the next batched durable write.
func (p *Processor) Handle(ctx context.Context, event model.AckEvent) error {
	p.metrics.record(string(event.Type), event.Ack.Status)

	if err := p.cache.Set(ctx, hotKey(event.Ack.MessageID), event, HotStateTTL); err != nil {
		logger.L().WarnContext(ctx, "failed to update ack hot state", "message_id", event.Ack.MessageID, "error", err)
	}

	p.mu.Lock()
	p.buffer = append(p.buffer, event)
	p.mu.Unlock()
	return nil
}

func hotKey(messageID string) string {
	return "ack:hot:" + messageID
}

// Close stops the flush loop after draining any buffered events.
func (p *Processor) Close() {
	close(p.stop)
	<-p.done
}

func (p *Processor) flushLoop() {
	defer close(p.done)
	ticker := time.NewTicker(p.linger)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.flush()
		case <-p.stop:
			p.flush()
			return
		}
	}
}

func (p *Processor) flush() {
	p.mu.Lock()
	batch := p.buffer
	p.buffer = nil
	p.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	ctx := context.Background()
	for _, event := range batch {
		if err := p.apply(ctx, event); err != nil {
			logger.L().ErrorContext(ctx, "failed to apply ack event", "message_id", event.Ack.MessageID,
				"type", event.Type, "error", err)
		}
	}
}

func (p *Processor) apply(ctx context.Context, event model.AckEvent) error {
	switch event.Type {
	case model.AckPersisted:
		return p.applyPersisted(ctx, event)
	case model.AckDelivered:
		return p.applyDelivered(ctx, event)
	case model.AckClient:
		return p.applyClient(ctx, event)
	case model.AckRead:
		return p.applyRead(ctx, event)
	default:
		return errors.New(errors.CodeInvalidArgument, "unknown ack type", nil)
	}
}

func (p *Processor) applyPersisted(ctx context.Context, event model.AckEvent) error {
	status := string(model.StatusPersisted)
	return p.db.Get(ctx).Model(&storagewriter.MessageRecord{}).
		Where("id = ?", event.Ack.MessageID).
		Update("status", status).Error
}

func (p *Processor) applyDelivered(ctx context.Context, event model.AckEvent) error {
	now := time.Now()
	state := model.MessageState{
		MessageID:      event.Ack.MessageID,
		UserID:         event.UserID,
		IsDelivered:    event.Ack.Status == "success",
		DeliveryFailed: event.Ack.Status != "success",
	}
	if state.IsDelivered {
		state.DeliveredAt = &now
	}
	return p.db.Get(ctx).Save(&state).Error
}

func (p *Processor) applyClient(ctx context.Context, event model.AckEvent) error {
	if event.Ack.Status != "success" {
		return nil
	}
	return p.db.Get(ctx).Model(&storagewriter.MessageRecord{}).
		Where("id = ?", event.Ack.MessageID).
		Update("status", string(model.StatusAcked)).Error
}

// applyRead marks the message read for event.UserID, triggers the
// burn-after-read timer if the message was flagged, and bumps
// ParticipantState.last_read_seq / recomputes unread_count.
func (p *Processor) applyRead(ctx context.Context, event model.AckEvent) error {
	now := time.Now()

	var state model.MessageState
	err := p.db.Get(ctx).Where("message_id = ? AND user_id = ?", event.Ack.MessageID, event.UserID).
		First(&state).Error
	if err != nil {
		state = model.MessageState{MessageID: event.Ack.MessageID, UserID: event.UserID}
	}
	state.IsRead = true
	state.ReadAt = &now
	if state.BurnAfterRead && state.BurnedAt == nil {
		state.BurnedAt = &now
	}
	if err := p.db.Get(ctx).Save(&state).Error; err != nil {
		return errors.Wrap(err, "failed to save message state")
	}

	var record storagewriter.MessageRecord
	if err := p.db.Get(ctx).First(&record, "id = ?", event.Ack.MessageID).Error; err != nil {
		// Message not yet visible to Storage Reader's table (e.g. WAL
		// replay still in flight); the read marker above still stands.
		return nil
	}

	var participant model.ParticipantState
	err = p.db.Get(ctx).Where("conversation_id = ? AND user_id = ?", record.ConversationID, event.UserID).
		First(&participant).Error
	if err != nil {
		participant = model.ParticipantState{ConversationID: record.ConversationID, UserID: event.UserID}
	}

	lastReadSeq := event.AckSeq
	if lastReadSeq == 0 {
		lastReadSeq = record.Seq
	}
	participant.LastReadSeq = lastReadSeq
	participant.UnreadCount = model.UnreadCount(participant.LastSyncSeq, lastReadSeq)

	return p.db.Get(ctx).Save(&participant).Error
}
