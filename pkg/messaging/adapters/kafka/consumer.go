package kafka

import (
	"context"

	"github.com/IBM/sarama"
	"github.com/flare-im/message-core/pkg/messaging"
)

// consumer adapts a sarama.ConsumerGroup to messaging.Consumer.
type consumer struct {
	topic string
	group sarama.ConsumerGroup
}

func (c *consumer) Consume(ctx context.Context, handler messaging.MessageHandler) error {
	h := &groupHandler{handler: handler}
	for {
		if err := c.group.Consume(ctx, []string{c.topic}, h); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return messaging.ErrConsumeFailed(err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *consumer) Close() error {
	return c.group.Close()
}

// groupHandler bridges sarama's claim-based consumer group API to the
// module's single-message MessageHandler.
type groupHandler struct {
	handler messaging.MessageHandler
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-sess.Context().Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			out := toMessage(msg)
			if err := h.handler(sess.Context(), out); err != nil {
				// Leave the offset uncommitted so the broker redelivers.
				return messaging.ErrConsumeFailed(err)
			}
			sess.MarkMessage(msg, "")
		}
	}
}

func toMessage(msg *sarama.ConsumerMessage) *messaging.Message {
	out := &messaging.Message{
		Topic:     msg.Topic,
		Key:       msg.Key,
		Payload:   msg.Value,
		Timestamp: msg.Timestamp,
		Headers:   make(map[string]string, len(msg.Headers)),
		Metadata: messaging.MessageMetadata{
			Partition:     msg.Partition,
			Offset:        msg.Offset,
			DeliveryCount: 1,
			Raw:           msg,
		},
	}
	for _, h := range msg.Headers {
		key := string(h.Key)
		out.Headers[key] = string(h.Value)
		if key == "message-id" {
			out.ID = string(h.Value)
		}
	}
	return out
}
