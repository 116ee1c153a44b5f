package storagewriter

import (
	"time"

	"github.com/flare-im/message-core/internal/model"
)

// MessageRecord is the durable row Storage Writer persists. It is a flat
// projection of model.Message plus the media-verification result; gorm
// owns table creation via AutoMigrate in cmd/storagewriter.
type MessageRecord struct {
	ID               string `gorm:"primaryKey"`
	ConversationID   string `gorm:"index"`
	SenderID         string
	SenderSource     string
	ConversationType string
	BusinessType     string
	ContentType      string
	Content          []byte
	MessageTypeLabel string
	NotificationOnly bool
	Class            string
	ContentKind      string
	Seq              int64 `gorm:"index"`
	Timestamp        time.Time
	Status           string
	TenantID         string
	ShardKey         string
	MediaMetaJSON    []byte
	PersistedAt      time.Time
}

func (MessageRecord) TableName() string { return "messages" }

func recordFromMessage(msg model.Message, mediaMeta []byte) MessageRecord {
	return MessageRecord{
		ID:               msg.ID,
		ConversationID:   msg.ConversationID,
		SenderID:         msg.SenderID,
		SenderSource:     string(msg.SenderSource),
		ConversationType: string(msg.ConversationType),
		BusinessType:     msg.BusinessType,
		ContentType:      msg.ContentType,
		Content:          msg.Content,
		MessageTypeLabel: msg.MessageTypeLabel,
		NotificationOnly: msg.NotificationOnly,
		Class:            string(msg.Class),
		ContentKind:      string(msg.ContentKind),
		Seq:              msg.Seq,
		Timestamp:        msg.Timestamp,
		Status:           string(model.StatusPersisted),
		TenantID:         msg.TenantID,
		ShardKey:         msg.ShardKey,
		MediaMetaJSON:    mediaMeta,
		PersistedAt:      time.Now(),
	}
}
