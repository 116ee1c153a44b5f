// Package publisher implements the dual-publish fan-out (spec §4.E): every
// Normal message is published to both the storage queue (msg.created) and
// the delivery queue (msg.deliver). The two publishes are not atomic: the
// storage leg goes first, neither leg is retried here, and a failed leg is
// reported to the caller.
package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/flare-im/message-core/internal/model"
	"github.com/flare-im/message-core/pkg/errors"
	"github.com/flare-im/message-core/pkg/logger"
	"github.com/flare-im/message-core/pkg/messaging"
	"github.com/google/uuid"
)

// Topics match the wire contract in spec §6.
const (
	TopicStorage       = "msg.created"
	TopicDeliver       = "msg.deliver"
	TopicDeliverWorker = "msg.deliver.worker"
	TopicDeliverDLQ    = "msg.deliver.dlq"
	TopicAck           = "msg.ack"
)

// Publisher owns one Producer per topic it has been asked to publish to,
// built lazily from a shared Broker.
type Publisher struct {
	broker    messaging.Broker
	producers map[string]messaging.Producer
}

// New builds a Publisher over broker. Producers are created on first use
// and reused for the lifetime of the Publisher.
func New(broker messaging.Broker) *Publisher {
	return &Publisher{broker: broker, producers: make(map[string]messaging.Producer)}
}

func (p *Publisher) producer(topic string) (messaging.Producer, error) {
	if prod, ok := p.producers[topic]; ok {
		return prod, nil
	}
	prod, err := p.broker.Producer(topic)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create producer for topic "+topic)
	}
	p.producers[topic] = prod
	return prod, nil
}

// publish marshals payload and sends it to topic, partitioned by key.
func (p *Publisher) publish(ctx context.Context, topic string, key string, messageID string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "failed to marshal payload for "+topic)
	}

	envelope := &messaging.Message{
		ID:        uuid.NewString(),
		Topic:     topic,
		Key:       []byte(key),
		Payload:   body,
		Timestamp: time.Now(),
		Headers:   map[string]string{"message-id": messageID},
	}

	prod, err := p.producer(topic)
	if err != nil {
		return err
	}
	if err := prod.Publish(ctx, envelope); err != nil {
		return errors.Wrap(err, "failed to publish to "+topic)
	}
	return nil
}

// PublishStorage sends msg to the storage queue, keyed by conversation_id
// so per-conversation order survives partitioning.
func (p *Publisher) PublishStorage(ctx context.Context, msg model.Message) error {
	return p.publish(ctx, TopicStorage, msg.ConversationID, msg.ID, msg)
}

// PublishDelivery sends a DeliveryTask to the delivery queue, keyed by the
// first recipient if known, else conversation_id.
func (p *Publisher) PublishDelivery(ctx context.Context, msg model.Message) error {
	task := model.DeliveryTask{
		Message:     msg,
		UserIDs:     msg.RecipientIDs,
		PushOptions: model.PushOptions{Strategy: model.DefaultPushStrategy},
	}
	key := msg.ConversationID
	if len(msg.RecipientIDs) > 0 {
		key = msg.RecipientIDs[0]
	}
	return p.publish(ctx, TopicDeliver, key, msg.ID, task)
}

// PublishBoth performs the dual publish for a Normal message, storage leg
// first: if the storage publish fails, the delivery leg is not sent and the
// storage error is returned, so a message is never handed to delivery
// without also being queued for persistence.
func (p *Publisher) PublishBoth(ctx context.Context, msg model.Message) error {
	if err := p.PublishStorage(ctx, msg); err != nil {
		logger.L().ErrorContext(ctx, "storage queue publish failed", "message_id", msg.ID, "error", err)
		return errors.Wrap(err, "storage publish failed")
	}
	if err := p.PublishDelivery(ctx, msg); err != nil {
		logger.L().ErrorContext(ctx, "delivery queue publish failed", "message_id", msg.ID, "error", err)
		return errors.Wrap(err, "storage succeeded but delivery publish failed")
	}
	return nil
}

// PublishWorkerTask sends a single per-device delivery task to the
// per-gateway worker topic, keyed by (user_id, device_id).
func (p *Publisher) PublishWorkerTask(ctx context.Context, task model.WorkerTask) error {
	key := task.Target.UserID + ":" + task.Target.DeviceID
	return p.publish(ctx, TopicDeliverWorker, key, task.Message.ID, task)
}

// PublishDLQ moves an exhausted task to the dead-letter topic, annotated
// with the last error and attempt count.
func (p *Publisher) PublishDLQ(ctx context.Context, envelope model.DLQEnvelope) error {
	return p.publish(ctx, TopicDeliverDLQ, envelope.Task.Message.ID, envelope.Task.Message.ID, envelope)
}

// PublishAck sends an ACK event for the ACK Return Path consumer, keyed by
// message_id.
func (p *Publisher) PublishAck(ctx context.Context, event model.AckEvent) error {
	return p.publish(ctx, TopicAck, event.Ack.MessageID, event.Ack.MessageID, event)
}

// Close releases every producer the Publisher has created.
func (p *Publisher) Close() error {
	var firstErr error
	for topic, prod := range p.producers {
		if err := prod.Close(); err != nil && firstErr == nil {
			firstErr = errors.Wrap(err, "failed to close producer for topic "+topic)
		}
	}
	return firstErr
}
