package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/flare-im/message-core/internal/idempotency"
	"github.com/flare-im/message-core/internal/model"
	"github.com/flare-im/message-core/internal/publisher"
	"github.com/flare-im/message-core/internal/sequence"
	"github.com/flare-im/message-core/internal/wal"
	walmemory "github.com/flare-im/message-core/internal/wal/adapters/memory"
	cachememory "github.com/flare-im/message-core/pkg/cache/adapters/memory"
	brokermemory "github.com/flare-im/message-core/pkg/messaging/adapters/memory"
	"github.com/stretchr/testify/require"
)

func newService() *Service {
	c := cachememory.New()
	seq := sequence.New(c, nil)
	w := wal.New(cachememory.New(), walmemory.New(), time.Hour)
	idem := idempotency.New(cachememory.New(), time.Hour)
	broker := brokermemory.New(brokermemory.Config{BufferSize: 8})
	pub := publisher.New(broker)
	return New(seq, w, idem, pub)
}

func TestStoreMessage_NormalGetsSeqAndPublishesBothQueues(t *testing.T) {
	svc := newService()

	out, err := svc.StoreMessage(context.Background(), StoreMessageRequest{
		ConversationID: "c1",
		SenderID:       "u1",
		ContentType:    "text",
		Content:        []byte("hello"),
	})
	require.NoError(t, err)
	require.True(t, out.Accepted)
	require.Equal(t, model.Normal, out.Class)
	require.Equal(t, int64(1), out.Seq)
}

func TestStoreMessage_NotificationOnlySkipsSequenceAllocation(t *testing.T) {
	svc := newService()

	out, err := svc.StoreMessage(context.Background(), StoreMessageRequest{
		ConversationID:   "c1",
		SenderID:         "u1",
		NotificationOnly: true,
	})
	require.NoError(t, err)
	require.Equal(t, model.Notification, out.Class)
	require.Equal(t, int64(0), out.Seq)
}

func TestStoreMessage_RequiresConversationAndSender(t *testing.T) {
	svc := newService()

	_, err := svc.StoreMessage(context.Background(), StoreMessageRequest{SenderID: "u1"})
	require.Error(t, err)

	_, err = svc.StoreMessage(context.Background(), StoreMessageRequest{ConversationID: "c1"})
	require.Error(t, err)
}

func TestStoreMessage_SecondCallWithSameClientIDDedupes(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	req := StoreMessageRequest{
		ID:             "client-supplied-id",
		ConversationID: "c1",
		SenderID:       "u1",
		ContentType:    "text",
		Content:        []byte("hello"),
	}

	first, err := svc.StoreMessage(ctx, req)
	require.NoError(t, err)
	require.True(t, first.Accepted)
	require.Equal(t, "client-supplied-id", first.MessageID)
	require.Equal(t, int64(1), first.Seq)

	second, err := svc.StoreMessage(ctx, req)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestStoreMessage_SameConversationAllocatesIncreasingSeq(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	out1, err := svc.StoreMessage(ctx, StoreMessageRequest{ConversationID: "c1", SenderID: "u1", ContentType: "text"})
	require.NoError(t, err)
	out2, err := svc.StoreMessage(ctx, StoreMessageRequest{ConversationID: "c1", SenderID: "u1", ContentType: "text"})
	require.NoError(t, err)

	require.Equal(t, int64(1), out1.Seq)
	require.Equal(t, int64(2), out2.Seq)
}
