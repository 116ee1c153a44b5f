package worker

import (
	"context"

	"github.com/flare-im/message-core/internal/model"
)

// SendError lets a Sender report a classified failure directly instead of
// relying on ClassifyError's string-sniffing fallback.
type SendError struct {
	Class   ErrorClass
	Message string
}

func (e *SendError) Error() string { return e.Message }

// Sender performs the actual transport-level send to the gateway serving
// a device. Implementations live behind the gateway/push client, not in
// this package.
type Sender interface {
	Send(ctx context.Context, target model.DeliveryTarget, payload []byte) error
}
