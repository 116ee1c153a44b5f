// Package kafka adapts github.com/IBM/sarama to the messaging.Broker
// interface.
package kafka

import (
	"context"

	"github.com/IBM/sarama"
	"github.com/flare-im/message-core/pkg/messaging"
)

// Config configures the Kafka adapter.
type Config struct {
	// Brokers is the list of seed broker addresses (host:port).
	Brokers []string `env:"KAFKA_BROKERS" env-separator:","`

	// ClientID identifies this client to the cluster for logging/quotas.
	ClientID string `env:"KAFKA_CLIENT_ID" env-default:"flare-message-core"`

	// Version is the Kafka protocol version sarama should negotiate.
	Version string `env:"KAFKA_VERSION" env-default:"3.6.0"`
}

// Broker is a sarama-backed messaging.Broker. A single Broker owns one
// sarama client and lazily creates sync producers and consumer groups per
// topic, closing them all when the broker is closed.
type Broker struct {
	cfg    Config
	client sarama.Client

	producers map[string]sarama.SyncProducer
	groups    map[string]sarama.ConsumerGroup
}

// New dials the given Kafka cluster.
func New(cfg Config) (*Broker, error) {
	if len(cfg.Brokers) == 0 {
		return nil, messaging.ErrInvalidConfig("at least one broker address is required", nil)
	}

	saramaCfg := sarama.NewConfig()
	saramaCfg.ClientID = cfg.ClientID
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Producer.RequiredAcks = sarama.WaitForAll
	saramaCfg.Producer.Idempotent = true
	saramaCfg.Net.MaxOpenRequests = 1
	saramaCfg.Consumer.Offsets.Initial = sarama.OffsetOldest

	if cfg.Version != "" {
		v, err := sarama.ParseKafkaVersion(cfg.Version)
		if err != nil {
			return nil, messaging.ErrInvalidConfig("invalid kafka version: "+cfg.Version, err)
		}
		saramaCfg.Version = v
	}

	client, err := sarama.NewClient(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, messaging.ErrConnectionFailed(err)
	}

	return &Broker{
		cfg:       cfg,
		client:    client,
		producers: make(map[string]sarama.SyncProducer),
		groups:    make(map[string]sarama.ConsumerGroup),
	}, nil
}

// Producer returns a sync producer bound to topic, reusing one per topic.
func (b *Broker) Producer(topic string) (messaging.Producer, error) {
	if p, ok := b.producers[topic]; ok {
		return &producer{broker: b, topic: topic, producer: p}, nil
	}

	p, err := sarama.NewSyncProducerFromClient(b.client)
	if err != nil {
		return nil, messaging.ErrConnectionFailed(err)
	}
	b.producers[topic] = p
	return &producer{broker: b, topic: topic, producer: p}, nil
}

// Consumer creates a consumer group reader for topic. group must be
// non-empty: Kafka consumer groups have no broadcast mode, unlike the
// in-memory adapter.
func (b *Broker) Consumer(topic string, group string) (messaging.Consumer, error) {
	if group == "" {
		return nil, messaging.ErrInvalidConfig("kafka consumer requires a non-empty group", nil)
	}

	cg, err := sarama.NewConsumerGroupFromClient(group, b.client)
	if err != nil {
		return nil, messaging.ErrConnectionFailed(err)
	}
	b.groups[group+"/"+topic] = cg

	return &consumer{topic: topic, group: cg}, nil
}

// Close shuts down every producer, consumer group, and the underlying
// client.
func (b *Broker) Close() error {
	for _, p := range b.producers {
		_ = p.Close()
	}
	for _, g := range b.groups {
		_ = g.Close()
	}
	return b.client.Close()
}

// Healthy reports whether the client still has at least one reachable
// broker.
func (b *Broker) Healthy(ctx context.Context) bool {
	if b.client.Closed() {
		return false
	}
	return len(b.client.Brokers()) > 0
}
