// Package model defines the data shapes that flow through the message
// lifecycle pipeline: Message, its per-stage Timeline, the processing-class
// split, and the read-model projections Storage Writer maintains.
package model

import (
	"time"

	"github.com/google/uuid"
)

// SenderSource identifies the kind of actor that produced a message.
type SenderSource string

const (
	SenderUser   SenderSource = "user"
	SenderSystem SenderSource = "system"
	SenderBot    SenderSource = "bot"
	SenderAdmin  SenderSource = "admin"
)

// ConversationType scopes who a conversation's participants are.
type ConversationType string

const (
	ConversationSingle  ConversationType = "single"
	ConversationGroup   ConversationType = "group"
	ConversationChannel ConversationType = "channel"
)

// Status is the coarse lifecycle stage of a message.
type Status string

const (
	StatusCreated     Status = "created"
	StatusPersisted    Status = "persisted"
	StatusDelivered    Status = "delivered"
	StatusAcked        Status = "acked"
	StatusRecalled      Status = "recalled"
	StatusDeletedHard  Status = "deleted_hard"
	StatusDeletedSoft  Status = "deleted_soft"
)

// ProcessingClass is derived once at ingest and never changes afterward.
type ProcessingClass string

const (
	// Normal messages are persisted and delivered.
	Normal ProcessingClass = "normal"
	// Notification messages are delivered only, discarded if the
	// recipient is offline, and never written to the durable store.
	Notification ProcessingClass = "notification"
)

// ContentKind is inferred from the message's content at classification
// time and carried in auxiliary data; it supplements ProcessingClass
// rather than replacing it.
type ContentKind string

const (
	ContentText        ContentKind = "text"
	ContentBinary       ContentKind = "binary"
	ContentCustom       ContentKind = "custom"
	ContentUnspecified ContentKind = "unspecified"
)

// Timeline is the stage-map of a message's progress. Each field is set at
// most once: earlier stages must never be overwritten once populated.
type Timeline struct {
	EmitTS       *time.Time `json:"emit_ts,omitempty"`
	IngestionTS  *time.Time `json:"ingestion_ts,omitempty"`
	PersistedTS  *time.Time `json:"persisted_ts,omitempty"`
	DispatchedTS *time.Time `json:"dispatched_ts,omitempty"`
	AckedTS      *time.Time `json:"acked_ts,omitempty"`
	ReadTS       *time.Time `json:"read_ts,omitempty"`
	DeletedTS    *time.Time `json:"deleted_ts,omitempty"`
}

// set assigns a stage timestamp only if it is not already set, preserving
// the "earlier stages are never overwritten" invariant.
func set(field **time.Time, at time.Time) {
	if *field == nil {
		t := at
		*field = &t
	}
}

func (t *Timeline) SetEmit(at time.Time)       { set(&t.EmitTS, at) }
func (t *Timeline) SetIngestion(at time.Time)  { set(&t.IngestionTS, at) }
func (t *Timeline) SetPersisted(at time.Time)  { set(&t.PersistedTS, at) }
func (t *Timeline) SetDispatched(at time.Time) { set(&t.DispatchedTS, at) }
func (t *Timeline) SetAcked(at time.Time)      { set(&t.AckedTS, at) }
func (t *Timeline) SetRead(at time.Time)       { set(&t.ReadTS, at) }
func (t *Timeline) SetDeleted(at time.Time)    { set(&t.DeletedTS, at) }

// Message is the atom that flows through the pipeline end to end.
type Message struct {
	// ID is the client-supplied message identifier when present; Normalize
	// assigns one if the client left it absent. A retried StoreMessage
	// call with the same ID must dedupe against idempotency.Store.
	ID               string           `json:"id"`
	ConversationID   string           `json:"conversation_id"`
	SenderID         string           `json:"sender_id"`
	SenderSource     SenderSource     `json:"sender_source"`
	ConversationType ConversationType `json:"conversation_type"`
	BusinessType     string           `json:"business_type"`

	ContentType string `json:"content_type"`
	Content     []byte `json:"content"`

	// MessageTypeLabel is the producer-supplied free-form label (e.g.
	// "notification", "typing", "system_event") used, along with
	// NotificationOnly, to derive Class.
	MessageTypeLabel string `json:"message_type_label,omitempty"`
	NotificationOnly bool   `json:"notification_only,omitempty"`

	Class       ProcessingClass `json:"class"`
	ContentKind ContentKind     `json:"content_kind"`

	Seq       int64     `json:"seq,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Timeline  Timeline  `json:"timeline"`
	Status    Status    `json:"status"`

	TenantID  string `json:"tenant_id,omitempty"`
	ShardKey  string `json:"shard_key,omitempty"`

	// RecipientIDs is the resolved participant set other than the
	// sender, threaded through from the orchestrator to the dispatcher.
	RecipientIDs []string `json:"recipient_ids,omitempty"`

	// MediaIDs references external media objects the content points at;
	// Storage Writer resolves these against the media service before
	// persisting.
	MediaIDs []string `json:"media_ids,omitempty"`

	// BurnAfterRead flags that the recipient's MessageState should be
	// marked burned as soon as its Read ACK lands, per spec §4.K.
	BurnAfterRead bool `json:"burn_after_read,omitempty"`
}

// Normalize fills in defaults the orchestrator is responsible for before a
// message is classified, per spec §4.F step 2, including assigning an ID
// when the client didn't supply one.
func (m *Message) Normalize() {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.SenderSource == "" {
		m.SenderSource = SenderUser
	}
	if m.ConversationType == "" {
		m.ConversationType = ConversationSingle
	}
	if m.BusinessType == "" {
		m.BusinessType = "default"
	}
	if m.Status == "" {
		m.Status = StatusCreated
	}
	if m.ShardKey == "" {
		m.ShardKey = m.ConversationID
	}
}

// notificationLabels are message_type_label values that imply Notification
// class on their own, independent of the NotificationOnly flag.
var notificationLabels = map[string]bool{
	"notification": true,
	"typing":       true,
	"system_event": true,
}

// Classify derives ProcessingClass and ContentKind from the message.
// NotificationOnly takes precedence over an explicit persistable type
// label, per the resolved Open Question in SPEC_FULL.md §6.2.
func (m *Message) Classify() {
	if m.NotificationOnly || notificationLabels[m.MessageTypeLabel] {
		m.Class = Notification
	} else {
		m.Class = Normal
	}
	m.ContentKind = classifyContentKind(m)
}

func classifyContentKind(m *Message) ContentKind {
	switch {
	case m.ContentType == "":
		return ContentUnspecified
	case m.ContentType == "text" || m.ContentType == "text/plain":
		return ContentText
	case len(m.Content) > 0 && looksLikeText(m.Content):
		return ContentText
	case len(m.Content) == 0:
		return ContentCustom
	default:
		return ContentBinary
	}
}

func looksLikeText(b []byte) bool {
	for _, c := range b {
		if c == 0 {
			return false
		}
	}
	return true
}

// NeedsPersistence reports whether the message must go through Storage
// Writer. Equal to NeedsWAL per SPEC_FULL.md §6.2.
func (m *Message) NeedsPersistence() bool { return m.Class == Normal }

// NeedsWAL reports whether the orchestrator must write this message to the
// write-ahead buffer before publishing.
func (m *Message) NeedsWAL() bool { return m.Class == Normal }
