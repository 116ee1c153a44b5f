// Package memory provides an in-process messaging.Broker backed by buffered
// Go channels. It is used for unit tests and local development where
// bringing up Kafka is unnecessary overhead.
package memory

import (
	"context"
	"sync"

	"github.com/flare-im/message-core/pkg/messaging"
	"github.com/google/uuid"
)

// Config configures the in-memory broker.
type Config struct {
	// BufferSize is the channel capacity for each topic.
	BufferSize int
}

// Broker is a channel-based messaging.Broker. Every topic gets its own
// fan-out list of subscriber channels; Publish copies the message to each
// subscriber currently registered for the topic.
type Broker struct {
	cfg Config

	mu          sync.RWMutex
	subscribers map[string][]chan *messaging.Message
	closed      bool
}

// New creates an in-memory broker.
func New(cfg Config) *Broker {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 64
	}
	return &Broker{
		cfg:         cfg,
		subscribers: make(map[string][]chan *messaging.Message),
	}
}

// Producer returns a producer bound to topic.
func (b *Broker) Producer(topic string) (messaging.Producer, error) {
	return &producer{broker: b, topic: topic}, nil
}

// Consumer returns a consumer bound to topic. The group parameter has no
// effect here: every consumer of a topic receives every message, matching
// the broadcast behavior documented for an empty group on real brokers.
func (b *Broker) Consumer(topic string, group string) (messaging.Consumer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, messaging.ErrClosed(nil)
	}
	ch := make(chan *messaging.Message, b.cfg.BufferSize)
	b.subscribers[topic] = append(b.subscribers[topic], ch)
	return &consumer{broker: b, topic: topic, ch: ch}, nil
}

func (b *Broker) publish(msg *messaging.Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return messaging.ErrClosed(nil)
	}
	for _, ch := range b.subscribers[msg.Topic] {
		select {
		case ch <- msg:
		default:
			return messaging.ErrQueueFull(nil)
		}
	}
	return nil
}

func (b *Broker) unsubscribe(topic string, ch chan *messaging.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subscribers[topic]
	for i, c := range subs {
		if c == ch {
			b.subscribers[topic] = append(subs[:i], subs[i+1:]...)
			close(ch)
			return
		}
	}
}

// Close shuts the broker down; no further Publish/Consumer calls succeed.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, subs := range b.subscribers {
		for _, ch := range subs {
			close(ch)
		}
	}
	b.subscribers = nil
	return nil
}

// Healthy reports true until the broker is closed; there is no connection
// to lose in-process.
func (b *Broker) Healthy(ctx context.Context) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return !b.closed
}

type producer struct {
	broker *Broker
	topic  string
}

func (p *producer) Publish(ctx context.Context, msg *messaging.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Topic == "" {
		msg.Topic = p.topic
	}
	return p.broker.publish(msg)
}

func (p *producer) PublishBatch(ctx context.Context, msgs []*messaging.Message) error {
	for _, msg := range msgs {
		if err := p.Publish(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (p *producer) Close() error { return nil }

type consumer struct {
	broker *Broker
	topic  string
	ch     chan *messaging.Message
}

func (c *consumer) Consume(ctx context.Context, handler messaging.MessageHandler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-c.ch:
			if !ok {
				return messaging.ErrClosed(nil)
			}
			if err := handler(ctx, msg); err != nil {
				return messaging.ErrConsumeFailed(err)
			}
		}
	}
}

func (c *consumer) Close() error {
	c.broker.unsubscribe(c.topic, c.ch)
	return nil
}
