// Package tests provides a conformance suite shared by every messaging.Broker
// adapter, so a new driver only needs to prove it satisfies the same
// contract the others do.
package tests

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/flare-im/message-core/pkg/messaging"
	"github.com/stretchr/testify/require"
)

// RunBrokerTests exercises publish/consume/close against any messaging.Broker
// implementation.
func RunBrokerTests(t *testing.T, broker messaging.Broker) {
	t.Run("PublishAndConsume", func(t *testing.T) {
		testPublishAndConsume(t, broker)
	})
	t.Run("PublishBatch", func(t *testing.T) {
		testPublishBatch(t, broker)
	})
	t.Run("Healthy", func(t *testing.T) {
		require.True(t, broker.Healthy(context.Background()))
	})
}

func testPublishAndConsume(t *testing.T, broker messaging.Broker) {
	topic := "conformance.publish-consume"

	consumer, err := broker.Consumer(topic, "")
	require.NoError(t, err)
	defer consumer.Close()

	producer, err := broker.Producer(topic)
	require.NoError(t, err)
	defer producer.Close()

	var mu sync.Mutex
	received := make([]*messaging.Message, 0, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = consumer.Consume(ctx, func(_ context.Context, msg *messaging.Message) error {
			mu.Lock()
			received = append(received, msg)
			mu.Unlock()
			cancel()
			return nil
		})
	}()

	require.NoError(t, producer.Publish(context.Background(), &messaging.Message{
		Topic:   topic,
		Payload: []byte("hello"),
	}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	require.Equal(t, []byte("hello"), received[0].Payload)
	require.NotEmpty(t, received[0].ID)
}

func testPublishBatch(t *testing.T, broker messaging.Broker) {
	topic := "conformance.publish-batch"

	consumer, err := broker.Consumer(topic, "")
	require.NoError(t, err)
	defer consumer.Close()

	producer, err := broker.Producer(topic)
	require.NoError(t, err)
	defer producer.Close()

	const count = 5
	var mu sync.Mutex
	received := 0
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = consumer.Consume(ctx, func(_ context.Context, msg *messaging.Message) error {
			mu.Lock()
			received++
			n := received
			mu.Unlock()
			if n == count {
				cancel()
			}
			return nil
		})
	}()

	msgs := make([]*messaging.Message, count)
	for i := range msgs {
		msgs[i] = &messaging.Message{Topic: topic, Payload: []byte("batch")}
	}
	require.NoError(t, producer.PublishBatch(context.Background(), msgs))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for batch")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, count, received)
}
