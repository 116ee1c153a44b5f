package model

// AckType distinguishes which stage of the pipeline produced an ACK event.
type AckType string

const (
	AckPersisted AckType = "persisted"
	AckDelivered AckType = "delivered"
	AckClient    AckType = "client"
	AckRead      AckType = "read"
)

// AckResult is the nested ack payload in the wire event, per spec §6.
type AckResult struct {
	MessageID    string `json:"message_id"`
	Status       string `json:"status"` // "success" | "failed"
	ErrorCode    int    `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// AckEvent is the bit-exact shape published to msg.ack and consumed by the
// ACK Return Path.
type AckEvent struct {
	Ack          AckResult `json:"ack"`
	Type         AckType   `json:"type"`
	UserID       string    `json:"user_id,omitempty"`
	DeviceID     string    `json:"device_id,omitempty"`
	ConnectionID string    `json:"connection_id,omitempty"`
	GatewayID    string    `json:"gateway_id,omitempty"`
	TimestampMs  int64     `json:"timestamp"`
	WindowID     string    `json:"window_id,omitempty"`
	AckSeq       int64     `json:"ack_seq,omitempty"`
}
