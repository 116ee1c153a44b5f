package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/flare-im/message-core/internal/model"
	"github.com/flare-im/message-core/internal/presence"
	"github.com/flare-im/message-core/internal/publisher"
	brokermemory "github.com/flare-im/message-core/pkg/messaging/adapters/memory"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	failTimes int32
	err       error
	calls     atomic.Int32
}

func (f *fakeSender) Send(_ context.Context, _ model.DeliveryTarget, _ []byte) error {
	n := f.calls.Add(1)
	if n <= f.failTimes {
		return f.err
	}
	return nil
}

type noopSource struct{}

func (noopSource) GetOnlineStatus(_ context.Context, userIDs []string) (map[string][]model.DeliveryTarget, error) {
	return map[string][]model.DeliveryTarget{}, nil
}

func newTestWorker(sender Sender, cfg Config) *Worker {
	broker := brokermemory.New(brokermemory.Config{BufferSize: 8})
	pub := publisher.New(broker)
	return New(sender, presence.New(noopSource{}), pub, cfg)
}

func fastConfig() Config {
	return Config{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond, Multiplier: 2, Jitter: 0}
}

func TestHandle_SucceedsOnFirstAttempt(t *testing.T) {
	sender := &fakeSender{}
	w := newTestWorker(sender, fastConfig())
	defer w.Close()

	task := model.WorkerTask{Message: model.Message{ID: "m1"}, Target: model.DeliveryTarget{UserID: "u1", DeviceID: "d1"}}
	require.NoError(t, w.Handle(context.Background(), task, []byte("payload")))
	require.Equal(t, int32(1), sender.calls.Load())
}

func TestHandle_RetriesNetworkErrorThenSucceeds(t *testing.T) {
	sender := &fakeSender{failTimes: 2, err: errors.New("connection refused")}
	w := newTestWorker(sender, fastConfig())
	defer w.Close()

	task := model.WorkerTask{Message: model.Message{ID: "m1"}, Target: model.DeliveryTarget{UserID: "u1", DeviceID: "d1"}}
	require.NoError(t, w.Handle(context.Background(), task, []byte("payload")))
	require.Eventually(t, func() bool { return sender.calls.Load() == 3 }, time.Second, time.Millisecond)
}

func TestHandle_AuthFailureDoesNotRetry(t *testing.T) {
	sender := &fakeSender{failTimes: 100, err: errors.New("token rejected: unauthenticated")}
	w := newTestWorker(sender, fastConfig())
	defer w.Close()

	task := model.WorkerTask{Message: model.Message{ID: "m1"}, Target: model.DeliveryTarget{UserID: "u1", DeviceID: "d1"}}
	require.NoError(t, w.Handle(context.Background(), task, []byte("payload")))
	require.Equal(t, int32(1), sender.calls.Load())
}

func TestHandle_UserOfflineDoesNotRetry(t *testing.T) {
	sender := &fakeSender{failTimes: 100, err: errors.New("user offline, gateway reports gone")}
	w := newTestWorker(sender, fastConfig())
	defer w.Close()

	task := model.WorkerTask{Message: model.Message{ID: "m1"}, Target: model.DeliveryTarget{UserID: "u1", DeviceID: "d1"}}
	require.NoError(t, w.Handle(context.Background(), task, []byte("payload")))
	require.Equal(t, int32(1), sender.calls.Load())
}

func TestHandle_ExhaustsRetriesAndGoesToDLQ(t *testing.T) {
	sender := &fakeSender{failTimes: 100, err: errors.New("connection reset")}
	w := newTestWorker(sender, fastConfig())
	defer w.Close()

	task := model.WorkerTask{Message: model.Message{ID: "m1"}, Target: model.DeliveryTarget{UserID: "u1", DeviceID: "d1"}}
	require.NoError(t, w.Handle(context.Background(), task, []byte("payload")))
	require.Eventually(t, func() bool { return sender.calls.Load() == 3 }, time.Second, time.Millisecond)
}

func TestClassifyError_SendErrorClassTakesPrecedence(t *testing.T) {
	err := &SendError{Class: ClassInvalidParameter, Message: "anything"}
	require.Equal(t, ClassInvalidParameter, ClassifyError(err))
}

func TestClassifyError_OtherWithoutKeywordIsNotRetryable(t *testing.T) {
	class := ClassifyError(errors.New("something truly unexpected happened"))
	require.Equal(t, ClassOther, class)
	require.False(t, class.Retryable())
}

func TestClassifyError_TemporaryUnavailableIsRetryable(t *testing.T) {
	class := ClassifyError(errors.New("service temporarily unavailable"))
	require.Equal(t, ClassTemporaryUnavailable, class)
	require.True(t, class.Retryable())
}
