// Package storagewriter implements the Storage Writer (spec §4.G): the
// storage-queue consumer that persists messages and projects the
// conversation/participant read models.
package storagewriter

import (
	"context"
	"encoding/json"
	"time"

	"github.com/flare-im/message-core/internal/idempotency"
	"github.com/flare-im/message-core/internal/model"
	"github.com/flare-im/message-core/internal/publisher"
	"github.com/flare-im/message-core/pkg/database/sql"
	"github.com/flare-im/message-core/pkg/errors"
	"github.com/flare-im/message-core/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Writer drives steps 1-6 of the Storage Writer pipeline for one message.
type Writer struct {
	db         sql.SQL
	idempotent *idempotency.Store
	media      MediaVerifier
	publisher  *publisher.Publisher
}

// New builds a Writer. media may be nil, in which case NoopVerifier is
// used and every referenced media ID is treated as an orphan.
func New(db sql.SQL, idem *idempotency.Store, media MediaVerifier, pub *publisher.Publisher) *Writer {
	if media == nil {
		media = NoopVerifier{}
	}
	return &Writer{db: db, idempotent: idem, media: media, publisher: pub}
}

// Handle persists msg and projects conversation/participant state, then
// publishes a persistence ACK. It is safe to call more than once for the
// same message_id (WAL replay): the second call is a no-op.
func (w *Writer) Handle(ctx context.Context, msg model.Message, recipientIDs []string) error {
	fresh, err := w.idempotent.ReserveStorage(ctx, msg.ID)
	if err != nil {
		return errors.Wrap(err, "storage dedupe check failed")
	}
	if !fresh {
		logger.L().DebugContext(ctx, "message already persisted, skipping", "message_id", msg.ID)
		return nil
	}

	mediaMeta, orphans, err := w.verifyMedia(ctx, msg.MediaIDs)
	if err != nil {
		return errors.Wrap(err, "media verification failed")
	}
	if len(orphans) > 0 {
		logger.L().WarnContext(ctx, "message references orphaned media", "message_id", msg.ID, "orphans", orphans)
	}

	conn, err := w.db.GetShard(ctx, msg.ShardKey)
	if err != nil {
		return errors.Wrap(err, "failed to resolve shard")
	}

	tx := conn.WithContext(ctx).Begin()
	if tx.Error != nil {
		return errors.Wrap(tx.Error, "failed to begin storage transaction")
	}

	record := recordFromMessage(msg, mediaMeta)
	if err := tx.Create(&record).Error; err != nil {
		tx.Rollback()
		return errors.Wrap(err, "failed to persist message")
	}

	if err := projectConversationState(tx, msg); err != nil {
		tx.Rollback()
		return errors.Wrap(err, "failed to project conversation state")
	}

	for _, userID := range recipientIDs {
		if userID == msg.SenderID {
			continue
		}
		if err := projectParticipantState(tx, msg, userID); err != nil {
			tx.Rollback()
			return errors.Wrap(err, "failed to project participant state")
		}
		if err := projectMessageState(tx, msg, userID); err != nil {
			tx.Rollback()
			return errors.Wrap(err, "failed to project message state")
		}
	}

	if err := tx.Commit().Error; err != nil {
		return errors.Wrap(err, "failed to commit storage transaction")
	}

	event := model.AckEvent{
		Ack:         model.AckResult{MessageID: msg.ID, Status: "success"},
		Type:        model.AckPersisted,
		TimestampMs: time.Now().UnixMilli(),
	}
	if err := w.publisher.PublishAck(ctx, event); err != nil {
		logger.L().ErrorContext(ctx, "failed to publish persistence ack", "message_id", msg.ID, "error", err)
	}

	return nil
}

func (w *Writer) verifyMedia(ctx context.Context, mediaIDs []string) (json.RawMessage, []string, error) {
	if len(mediaIDs) == 0 {
		return nil, nil, nil
	}

	resolved, err := w.media.VerifyMedia(ctx, mediaIDs)
	if err != nil {
		return nil, nil, err
	}

	var orphans []string
	for _, id := range mediaIDs {
		if _, ok := resolved[id]; !ok {
			orphans = append(orphans, id)
		}
	}

	meta, err := json.Marshal(resolved)
	if err != nil {
		return nil, orphans, errors.Wrap(err, "failed to marshal media metadata")
	}
	return meta, orphans, nil
}

// projectConversationState upserts last_message_{id,seq,ts,sender_id} so an
// out-of-band conversation creation race does not fail the write.
func projectConversationState(tx *gorm.DB, msg model.Message) error {
	state := model.ConversationState{
		ConversationID: msg.ConversationID,
		LastMessageID:  msg.ID,
		LastMessageSeq: msg.Seq,
		LastMessageTS:  msg.Timestamp,
		LastSenderID:   msg.SenderID,
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "conversation_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_message_id", "last_message_seq", "last_message_ts", "last_sender_id"}),
	}).Create(&state).Error
}

// projectMessageState seeds the per-recipient MessageState row with the
// message's burn-after-read flag so ack.go's Read ACK handler has
// somewhere to find it; it must not clobber delivery/read fields a prior
// ACK already set, so it only inserts, never updates, on conflict.
func projectMessageState(tx *gorm.DB, msg model.Message, userID string) error {
	state := model.MessageState{
		MessageID:     msg.ID,
		UserID:        userID,
		BurnAfterRead: msg.BurnAfterRead,
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&state).Error
}

// projectParticipantState recomputes unread_count and bumps last_sync_seq
// for one recipient, per spec §4.G step 5.
func projectParticipantState(tx *gorm.DB, msg model.Message, userID string) error {
	var existing model.ParticipantState
	err := tx.Where("conversation_id = ? AND user_id = ?", msg.ConversationID, userID).
		First(&existing).Error
	if err != nil {
		existing = model.ParticipantState{ConversationID: msg.ConversationID, UserID: userID}
	}

	existing.LastSyncSeq = msg.Seq
	existing.UnreadCount = model.UnreadCount(msg.Seq, existing.LastReadSeq)

	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "conversation_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_sync_seq", "unread_count"}),
	}).Create(&existing).Error
}
