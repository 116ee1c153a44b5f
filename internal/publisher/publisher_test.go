package publisher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/flare-im/message-core/internal/model"
	"github.com/flare-im/message-core/pkg/messaging"
	brokermemory "github.com/flare-im/message-core/pkg/messaging/adapters/memory"
	"github.com/stretchr/testify/require"
)

// collect starts consuming topic in the background and returns a function
// that blocks until n messages have arrived (or the test times out).
func collect(t *testing.T, broker *brokermemory.Broker, topic string, n int) func() []*messaging.Message {
	t.Helper()
	consumer, err := broker.Consumer(topic, "")
	require.NoError(t, err)

	var mu sync.Mutex
	var received []*messaging.Message
	done := make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go func() {
		_ = consumer.Consume(ctx, func(_ context.Context, msg *messaging.Message) error {
			mu.Lock()
			received = append(received, msg)
			count := len(received)
			mu.Unlock()
			if count >= n {
				close(done)
			}
			return nil
		})
	}()

	return func() []*messaging.Message {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for messages on " + topic)
		}
		mu.Lock()
		defer mu.Unlock()
		return received
	}
}

func TestPublishBoth_SendsToBothTopics(t *testing.T) {
	broker := brokermemory.New(brokermemory.Config{BufferSize: 8})
	p := New(broker)

	waitStorage := collect(t, broker, TopicStorage, 1)
	waitDelivery := collect(t, broker, TopicDeliver, 1)

	msg := model.Message{ID: "m1", ConversationID: "c1", Timestamp: time.Now()}
	require.NoError(t, p.PublishBoth(context.Background(), msg))

	storageMsgs := waitStorage()
	deliveryMsgs := waitDelivery()

	require.Len(t, storageMsgs, 1)
	require.Len(t, deliveryMsgs, 1)
	require.Equal(t, "m1", storageMsgs[0].Headers["message-id"])
	require.Equal(t, "m1", deliveryMsgs[0].Headers["message-id"])
}

func TestPublishAck_UsesAckTopic(t *testing.T) {
	broker := brokermemory.New(brokermemory.Config{BufferSize: 8})
	p := New(broker)

	wait := collect(t, broker, TopicAck, 1)

	event := model.AckEvent{Ack: model.AckResult{MessageID: "m1", Status: "success"}, Type: model.AckPersisted}
	require.NoError(t, p.PublishAck(context.Background(), event))

	msgs := wait()
	require.Len(t, msgs, 1)
	require.Equal(t, TopicAck, msgs[0].Topic)
}

func TestPublisher_ReusesProducerPerTopic(t *testing.T) {
	broker := brokermemory.New(brokermemory.Config{BufferSize: 8})
	p := New(broker)

	prod1, err := p.producer(TopicStorage)
	require.NoError(t, err)
	prod2, err := p.producer(TopicStorage)
	require.NoError(t, err)

	require.Same(t, prod1, prod2)
}
