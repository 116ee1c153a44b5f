package dispatcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/flare-im/message-core/internal/idempotency"
	"github.com/flare-im/message-core/internal/model"
	"github.com/flare-im/message-core/internal/presence"
	"github.com/flare-im/message-core/internal/publisher"
	cachememory "github.com/flare-im/message-core/pkg/cache/adapters/memory"
	"github.com/flare-im/message-core/pkg/messaging"
	brokermemory "github.com/flare-im/message-core/pkg/messaging/adapters/memory"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	data map[string][]model.DeliveryTarget
}

func (f *fakeSource) GetOnlineStatus(_ context.Context, userIDs []string) (map[string][]model.DeliveryTarget, error) {
	out := make(map[string][]model.DeliveryTarget)
	for _, id := range userIDs {
		out[id] = f.data[id]
	}
	return out, nil
}

type fakeOffline struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeOffline) PublishOfflinePush(_ context.Context, _ model.Message, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, userID)
	return nil
}

func newDispatcher(src *fakeSource, offline OfflinePublisher) (*Dispatcher, *brokermemory.Broker) {
	broker := brokermemory.New(brokermemory.Config{BufferSize: 16})
	pub := publisher.New(broker)
	d := New(presence.New(src), idempotency.New(cachememory.New(), time.Hour), pub, offline)
	return d, broker
}

func collectWorkerTasks(t *testing.T, broker *brokermemory.Broker, n int) func() []*messaging.Message {
	t.Helper()
	consumer, err := broker.Consumer(publisher.TopicDeliverWorker, "")
	require.NoError(t, err)

	var mu sync.Mutex
	var received []*messaging.Message
	done := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go consumer.Consume(ctx, func(_ context.Context, msg *messaging.Message) error {
		mu.Lock()
		received = append(received, msg)
		count := len(received)
		mu.Unlock()
		if count >= n {
			close(done)
		}
		return nil
	})

	return func() []*messaging.Message {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for worker tasks")
		}
		mu.Lock()
		defer mu.Unlock()
		return received
	}
}

func TestHandle_AllDevicesStrategyExcludesLowPriorityAndUnavailable(t *testing.T) {
	src := &fakeSource{data: map[string][]model.DeliveryTarget{
		"u1": {
			{UserID: "u1", DeviceID: "d1", DevicePriority: model.PriorityHigh, Quality: model.QualityGood},
			{UserID: "u1", DeviceID: "d2", DevicePriority: model.PriorityLow, Quality: model.QualityGood},
			{UserID: "u1", DeviceID: "d3", DevicePriority: model.PriorityNormal, Quality: model.QualityUnavailable},
		},
	}}
	d, broker := newDispatcher(src, nil)
	wait := collectWorkerTasks(t, broker, 1)

	task := model.DeliveryTask{Message: model.Message{ID: "m1"}, UserIDs: []string{"u1"}}
	require.NoError(t, d.Handle(context.Background(), task))

	msgs := wait()
	require.Len(t, msgs, 1)
}

func TestHandle_BestDevicePicksHighestQualityLowestRTT(t *testing.T) {
	devices := selectDevices([]model.DeliveryTarget{
		{DeviceID: "d1", Quality: model.QualityGood, RTTMillis: 50},
		{DeviceID: "d2", Quality: model.QualityExcellent, RTTMillis: 80},
		{DeviceID: "d3", Quality: model.QualityExcellent, RTTMillis: 20},
	}, model.StrategyBestDevice)

	require.Len(t, devices, 1)
	require.Equal(t, "d3", devices[0].DeviceID)
}

func TestHandle_NoEligibleDeviceRoutesNormalToOfflinePush(t *testing.T) {
	src := &fakeSource{data: map[string][]model.DeliveryTarget{}}
	offline := &fakeOffline{}
	d, _ := newDispatcher(src, offline)

	task := model.DeliveryTask{Message: model.Message{ID: "m1", Class: model.Normal}, UserIDs: []string{"u1"}}
	require.NoError(t, d.Handle(context.Background(), task))

	require.Equal(t, []string{"u1"}, offline.calls)
}

func TestHandle_NotificationDroppedSilentlyWhenOffline(t *testing.T) {
	src := &fakeSource{data: map[string][]model.DeliveryTarget{}}
	offline := &fakeOffline{}
	d, _ := newDispatcher(src, offline)

	task := model.DeliveryTask{Message: model.Message{ID: "m1", Class: model.Notification}, UserIDs: []string{"u1"}}
	require.NoError(t, d.Handle(context.Background(), task))

	require.Empty(t, offline.calls)
}

func TestHandle_DispatchReservationPreventsDuplicateDispatch(t *testing.T) {
	src := &fakeSource{data: map[string][]model.DeliveryTarget{
		"u1": {{UserID: "u1", DeviceID: "d1", DevicePriority: model.PriorityHigh, Quality: model.QualityGood}},
	}}
	d, broker := newDispatcher(src, nil)
	wait := collectWorkerTasks(t, broker, 1)

	task := model.DeliveryTask{Message: model.Message{ID: "m1"}, UserIDs: []string{"u1"}}
	require.NoError(t, d.Handle(context.Background(), task))
	wait()

	// second handle for the same message/user must not enqueue again
	require.NoError(t, d.Handle(context.Background(), task))
}
