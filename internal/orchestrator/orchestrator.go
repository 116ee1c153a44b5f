// Package orchestrator implements the ingest pipeline (spec §4.F): the
// single synchronous path a StoreMessage call walks through before the
// caller gets an answer. Everything after the dual publish (persistence,
// projection, dispatch, delivery, ack) happens asynchronously in the
// Storage Writer, Dispatcher, Worker and ACK Return Path components.
package orchestrator

import (
	"context"
	"time"

	"github.com/flare-im/message-core/internal/idempotency"
	"github.com/flare-im/message-core/internal/model"
	"github.com/flare-im/message-core/internal/publisher"
	"github.com/flare-im/message-core/internal/sequence"
	"github.com/flare-im/message-core/internal/wal"
	"github.com/flare-im/message-core/pkg/errors"
	"github.com/flare-im/message-core/pkg/logger"
)

// StoreMessageRequest is the ingest RPC input (spec §6). ID is optional:
// a client that supplies one can safely retry the call after a timeout and
// get the same outcome back instead of a duplicate message, per spec §4.F
// step 2 ("assign id if absent").
type StoreMessageRequest struct {
	ID               string
	ConversationID   string
	SenderID         string
	SenderSource     model.SenderSource
	ConversationType model.ConversationType
	BusinessType     string
	ContentType      string
	Content          []byte
	MessageTypeLabel string
	NotificationOnly bool
	TenantID         string
	RecipientIDs     []string
	BurnAfterRead    bool
}

// StoreMessageOutcome is what Reserve's duplicate path replays and what a
// fresh call returns; it is the durable, idempotent result of processing a
// given message_id.
type StoreMessageOutcome struct {
	MessageID string              `json:"message_id"`
	Seq       int64               `json:"seq"`
	Class     model.ProcessingClass `json:"class"`
	Accepted  bool                `json:"accepted"`
}

// Service drives the ingest pipeline: normalize, classify, dedupe,
// allocate, durably buffer, and dual-publish.
type Service struct {
	sequence   *sequence.Allocator
	wal        *wal.Buffer
	idempotent *idempotency.Store
	publisher  *publisher.Publisher
}

// New builds a Service from its collaborators.
func New(seq *sequence.Allocator, w *wal.Buffer, idem *idempotency.Store, pub *publisher.Publisher) *Service {
	return &Service{sequence: seq, wal: w, idempotent: idem, publisher: pub}
}

// StoreMessage runs the full ingest pipeline for one message and returns
// once the message is durably accepted, i.e. either published or
// recorded in the WAL against a publish failure the caller can retry.
func (s *Service) StoreMessage(ctx context.Context, req StoreMessageRequest) (StoreMessageOutcome, error) {
	if req.ConversationID == "" {
		return StoreMessageOutcome{}, errors.New(errors.CodeInvalidArgument, "conversation_id is required", nil)
	}
	if req.SenderID == "" {
		return StoreMessageOutcome{}, errors.New(errors.CodeInvalidArgument, "sender_id is required", nil)
	}

	msg := model.Message{
		ID:               req.ID,
		ConversationID:   req.ConversationID,
		SenderID:         req.SenderID,
		SenderSource:     req.SenderSource,
		ConversationType: req.ConversationType,
		BusinessType:     req.BusinessType,
		ContentType:      req.ContentType,
		Content:          req.Content,
		MessageTypeLabel: req.MessageTypeLabel,
		NotificationOnly: req.NotificationOnly,
		TenantID:         req.TenantID,
		RecipientIDs:     req.RecipientIDs,
		BurnAfterRead:    req.BurnAfterRead,
		Timestamp:        time.Now(),
	}
	msg.Normalize()
	msg.Classify()
	msg.Timeline.SetIngestion(msg.Timestamp)

	fresh, err := s.idempotent.Reserve(ctx, msg.ID)
	if err != nil {
		return StoreMessageOutcome{}, errors.Wrap(err, "idempotency reservation failed")
	}
	if !fresh {
		var outcome StoreMessageOutcome
		if err := s.idempotent.Outcome(ctx, msg.ID, &outcome); err != nil {
			return StoreMessageOutcome{}, errors.Wrap(err, "duplicate message but no stored outcome")
		}
		return outcome, nil
	}

	if msg.NeedsPersistence() {
		seq, err := s.sequence.Allocate(ctx, msg.ConversationID)
		if err != nil {
			return StoreMessageOutcome{}, errors.Wrap(err, "sequence allocation failed")
		}
		msg.Seq = seq
	}

	if msg.NeedsWAL() {
		if err := s.wal.Append(ctx, msg); err != nil {
			return StoreMessageOutcome{}, errors.Wrap(err, "wal append failed")
		}
	}

	storagePublished, err := s.dispatch(ctx, msg)
	if err != nil {
		return StoreMessageOutcome{}, err
	}

	if msg.NeedsWAL() && storagePublished {
		if err := s.wal.Remove(ctx, msg.ID); err != nil {
			logger.L().WarnContext(ctx, "wal remove failed after successful publish, replay will re-submit",
				"message_id", msg.ID, "error", err)
		}
	}

	outcome := StoreMessageOutcome{MessageID: msg.ID, Seq: msg.Seq, Class: msg.Class, Accepted: true}
	if err := s.idempotent.StoreOutcome(ctx, msg.ID, outcome); err != nil {
		logger.L().WarnContext(ctx, "failed to persist idempotent outcome", "message_id", msg.ID, "error", err)
	}
	return outcome, nil
}

// dispatch publishes msg to the queues appropriate for its class and
// reports whether the storage leg succeeded. Per spec §4.F step 7, a
// Normal message whose storage publish succeeds but delivery publish
// fails is still reported to the caller as accepted: the storage queue
// entry is the durability witness, and WAL replay re-feeds delivery.
// A Notification message has no WAL safety net, so any publish failure
// is surfaced as a retryable error.
func (s *Service) dispatch(ctx context.Context, msg model.Message) (storagePublished bool, err error) {
	if msg.Class != model.Normal {
		if err := s.publisher.PublishDelivery(ctx, msg); err != nil {
			return false, errors.Wrap(err, "notification delivery publish failed")
		}
		return false, nil
	}

	if err := s.publisher.PublishStorage(ctx, msg); err != nil {
		return false, errors.Wrap(err, "storage publish failed")
	}

	if err := s.publisher.PublishDelivery(ctx, msg); err != nil {
		logger.L().ErrorContext(ctx, "delivery publish failed after storage succeeded, relying on wal replay",
			"message_id", msg.ID, "error", err)
	}

	return true, nil
}
