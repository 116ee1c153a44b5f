// Package storagereader implements the Storage Reader (spec §4.H):
// seq-ranged conversation history reads over Storage Writer's projections,
// filtered against per-user visibility.
package storagereader

import (
	"context"

	"github.com/flare-im/message-core/internal/model"
	"github.com/flare-im/message-core/internal/storagewriter"
	"github.com/flare-im/message-core/pkg/database/sql"
	"github.com/flare-im/message-core/pkg/errors"
)

// Query describes a bounded range read over one conversation's history.
type Query struct {
	ConversationID string
	UserID         string
	AfterSeq       int64
	BeforeSeq      int64 // 0 means unbounded
	Limit          int
}

// Reader serves history reads for one conversation at a time.
type Reader struct {
	db sql.SQL
}

// New builds a Reader.
func New(db sql.SQL) *Reader {
	return &Reader{db: db}
}

const defaultLimit = 50

// Query returns messages in (after_seq, before_seq] order, filtered to
// exclude anything the requesting user has hidden or deleted, and a
// next_cursor to resume pagination.
func (r *Reader) Query(ctx context.Context, q Query) ([]model.Message, *int64, error) {
	if q.ConversationID == "" {
		return nil, nil, errors.New(errors.CodeInvalidArgument, "conversation_id is required", nil)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	var records []storagewriter.MessageRecord
	stmt := r.db.Get(ctx).
		Where("conversation_id = ?", q.ConversationID).
		Where("seq > ?", q.AfterSeq)
	if q.BeforeSeq > 0 {
		stmt = stmt.Where("seq <= ?", q.BeforeSeq)
	}

	if err := stmt.Order("seq ASC").Limit(limit + 1).Find(&records).Error; err != nil {
		return nil, nil, errors.Wrap(err, "failed to query message history")
	}

	var nextCursor *int64
	if len(records) > limit {
		records = records[:limit]
		cursor := records[len(records)-1].Seq
		nextCursor = &cursor
	}

	visible, err := r.filterVisible(ctx, q.UserID, records)
	if err != nil {
		return nil, nil, err
	}

	return visible, nextCursor, nil
}

// filterVisible drops messages the user has marked deleted/hidden in
// MessageState. A user with no MessageState row for a message sees it.
func (r *Reader) filterVisible(ctx context.Context, userID string, records []storagewriter.MessageRecord) ([]model.Message, error) {
	if userID == "" || len(records) == 0 {
		return toMessages(records), nil
	}

	ids := make([]string, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
	}

	var hidden []model.MessageState
	err := r.db.Get(ctx).
		Where("user_id = ? AND message_id IN ? AND is_deleted = ?", userID, ids, true).
		Find(&hidden).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to load message visibility")
	}

	hiddenIDs := make(map[string]bool, len(hidden))
	for _, h := range hidden {
		hiddenIDs[h.MessageID] = true
	}

	out := make([]model.Message, 0, len(records))
	for _, rec := range records {
		if hiddenIDs[rec.ID] {
			continue
		}
		out = append(out, toMessage(rec))
	}
	return out, nil
}

func toMessages(records []storagewriter.MessageRecord) []model.Message {
	out := make([]model.Message, len(records))
	for i, rec := range records {
		out[i] = toMessage(rec)
	}
	return out
}

func toMessage(rec storagewriter.MessageRecord) model.Message {
	return model.Message{
		ID:               rec.ID,
		ConversationID:   rec.ConversationID,
		SenderID:         rec.SenderID,
		SenderSource:     model.SenderSource(rec.SenderSource),
		ConversationType: model.ConversationType(rec.ConversationType),
		BusinessType:     rec.BusinessType,
		ContentType:      rec.ContentType,
		Content:          rec.Content,
		MessageTypeLabel: rec.MessageTypeLabel,
		NotificationOnly: rec.NotificationOnly,
		Class:            model.ProcessingClass(rec.Class),
		ContentKind:      model.ContentKind(rec.ContentKind),
		Seq:              rec.Seq,
		Timestamp:        rec.Timestamp,
		Status:           model.Status(rec.Status),
		TenantID:         rec.TenantID,
		ShardKey:         rec.ShardKey,
	}
}
