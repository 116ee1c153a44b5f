package model

import "time"

// ConversationState is the per-conversation projection Storage Writer
// upserts on every persisted message.
type ConversationState struct {
	ConversationID  string    `json:"conversation_id" gorm:"primaryKey"`
	LastMessageID   string    `json:"last_message_id"`
	LastMessageSeq  int64     `json:"last_message_seq"`
	LastMessageTS   time.Time `json:"last_message_ts"`
	LastSenderID    string    `json:"last_sender_id"`
}

// ParticipantState is the per-(conversation, user) sync cursor. UnreadCount
// is always max(0, LastMessageSeq - LastReadSeq); Storage Writer maintains
// that invariant on every projection update.
type ParticipantState struct {
	ConversationID string `json:"conversation_id" gorm:"primaryKey"`
	UserID         string `json:"user_id" gorm:"primaryKey"`
	LastReadSeq    int64  `json:"last_read_seq"`
	LastSyncSeq    int64  `json:"last_sync_seq"`
	UnreadCount    int64  `json:"unread_count"`
}

// UnreadCount derives the unread count for a given last-message seq.
func UnreadCount(lastMessageSeq, lastReadSeq int64) int64 {
	if lastMessageSeq <= lastReadSeq {
		return 0
	}
	return lastMessageSeq - lastReadSeq
}

// MessageState is per-recipient, private state over a message: a user's
// own read/delete/burn actions never mutate the shared message row.
type MessageState struct {
	MessageID      string     `json:"message_id" gorm:"primaryKey"`
	UserID         string     `json:"user_id" gorm:"primaryKey"`
	IsDelivered    bool       `json:"is_delivered"`
	DeliveredAt    *time.Time `json:"delivered_at,omitempty"`
	DeliveryFailed bool       `json:"delivery_failed"`
	IsRead         bool       `json:"is_read"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	IsDeleted      bool       `json:"is_deleted"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
	BurnAfterRead  bool       `json:"burn_after_read"`
	BurnedAt       *time.Time `json:"burned_at,omitempty"`
}

// DevicePriority ranks a device's desirability for targeted strategies
// like HighPriority; Critical is the most eligible.
type DevicePriority string

const (
	PriorityCritical DevicePriority = "critical"
	PriorityHigh     DevicePriority = "high"
	PriorityNormal   DevicePriority = "normal"
	PriorityLow      DevicePriority = "low"
)

// priorityRank gives each DevicePriority a numeric ordering: lower is
// better, matching the Critical-first intent of the push strategies.
var priorityRank = map[DevicePriority]int{
	PriorityCritical: 0,
	PriorityHigh:      1,
	PriorityNormal:    2,
	PriorityLow:       3,
}

// Rank returns the numeric priority ordering, defaulting unknown values to
// the lowest rank so malformed input never outranks a known priority.
func (p DevicePriority) Rank() int {
	if r, ok := priorityRank[p]; ok {
		return r
	}
	return len(priorityRank)
}

// Quality is a coarse connection-health bucket reported by the gateway for
// a connected device.
type Quality string

const (
	QualityExcellent  Quality = "excellent"
	QualityGood       Quality = "good"
	QualityFair       Quality = "fair"
	QualityPoor       Quality = "poor"
	QualityUnavailable Quality = "unavailable"
)

var qualityRank = map[Quality]int{
	QualityExcellent:   0,
	QualityGood:        1,
	QualityFair:        2,
	QualityPoor:        3,
	QualityUnavailable: 4,
}

// Rank returns the numeric quality ordering: lower is better.
func (q Quality) Rank() int {
	if r, ok := qualityRank[q]; ok {
		return r
	}
	return len(qualityRank)
}

// DeliveryTarget is the ephemeral, per-delivery-decision tuple the
// Dispatcher builds and the Worker receives a detached copy of.
type DeliveryTarget struct {
	UserID         string         `json:"user_id"`
	DeviceID       string         `json:"device_id"`
	DevicePriority DevicePriority `json:"device_priority"`
	GatewayID      string         `json:"gateway_id"`
	Quality        Quality        `json:"quality"`
	RTTMillis      int64          `json:"rtt_ms"`
	LastActiveMs   int64          `json:"last_active_ms"`
}

// PushStrategy selects which of a user's connected devices receive a
// message, per spec §4.I step 3.
type PushStrategy string

const (
	StrategyAllDevices  PushStrategy = "all_devices"
	StrategyBestDevice  PushStrategy = "best_device"
	StrategyHighPriority PushStrategy = "high_priority"
	StrategyActive      PushStrategy = "active"
)

// DefaultPushStrategy is used when a message carries no explicit strategy.
const DefaultPushStrategy = StrategyAllDevices
