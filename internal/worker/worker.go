// Package worker implements the Delivery Worker (spec §4.J): per-device
// transport sends with classified retry/backoff, presence invalidation on a
// user-offline failure (reported as failed, neither retried nor rerouted),
// and dead-lettering after the retry budget is exhausted.
package worker

import (
	"context"
	"time"

	"github.com/flare-im/message-core/internal/model"
	"github.com/flare-im/message-core/internal/presence"
	"github.com/flare-im/message-core/internal/publisher"
	"github.com/flare-im/message-core/pkg/datastructures/queue/delay"
	"github.com/flare-im/message-core/pkg/logger"
	"github.com/flare-im/message-core/pkg/resilience"
)

// retryItem is one queued redelivery attempt.
type retryItem struct {
	task    model.WorkerTask
	payload []byte
}

// Config bounds the worker's retry behavior.
type Config struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	Jitter         float64
}

// DefaultConfig matches pkg/resilience's own retry defaults.
func DefaultConfig() Config {
	d := resilience.DefaultRetryConfig()
	return Config{
		MaxAttempts:    d.MaxAttempts,
		InitialBackoff: d.InitialBackoff,
		MaxBackoff:     d.MaxBackoff,
		Multiplier:     d.Multiplier,
		Jitter:         d.Jitter,
	}
}

// Worker sends one delivery task at a time to its target's gateway.
// Retries are scheduled on a delay queue drained by a dedicated goroutine
// rather than blocking the calling consumer goroutine in time.Sleep, so one
// slow backoff never stalls the rest of the queue.
type Worker struct {
	sender    Sender
	presence  *presence.Cache
	publisher *publisher.Publisher
	cfg       Config
	retries   *delay.Queue[retryItem]
	cancel    context.CancelFunc
}

// New builds a Worker and starts its retry-draining goroutine.
func New(sender Sender, p *presence.Cache, pub *publisher.Publisher, cfg Config) *Worker {
	if cfg.MaxAttempts <= 0 {
		cfg = DefaultConfig()
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		sender:    sender,
		presence:  p,
		publisher: pub,
		cfg:       cfg,
		retries:   delay.New[retryItem](),
		cancel:    cancel,
	}
	go w.drainRetries(ctx)
	return w
}

// Close stops the retry-draining goroutine and releases the delay queue.
func (w *Worker) Close() {
	w.cancel()
	w.retries.Close()
}

// Handle attempts task's delivery once. A classified-retryable failure is
// rescheduled onto the retry queue with exponential backoff instead of
// being retried inline; it always returns nil, since terminal outcomes are
// reported via ACK/DLQ events rather than the return value.
func (w *Worker) Handle(ctx context.Context, task model.WorkerTask, payload []byte) error {
	w.attempt(ctx, task, payload)
	return nil
}

func (w *Worker) attempt(ctx context.Context, task model.WorkerTask, payload []byte) {
	err := w.sender.Send(ctx, task.Target, payload)
	if err == nil {
		w.ackSuccess(ctx, task)
		return
	}

	class := ClassifyError(err)

	if class == ClassUserOffline {
		w.presence.Invalidate(task.Target.UserID)
		logger.L().InfoContext(ctx, "target reported offline, not retrying on delivery path",
			"message_id", task.Message.ID, "user_id", task.Target.UserID, "device_id", task.Target.DeviceID)
		w.ackFailure(ctx, task, err)
		return
	}

	if !class.Retryable() {
		logger.L().WarnContext(ctx, "delivery failed permanently", "message_id", task.Message.ID,
			"device_id", task.Target.DeviceID, "class", class, "error", err)
		w.ackFailure(ctx, task, err)
		return
	}

	if task.Attempt+1 >= w.cfg.MaxAttempts {
		w.sendToDLQ(ctx, task, err)
		return
	}

	backoff := resilience.ExponentialBackoff(task.Attempt, w.cfg.InitialBackoff, w.cfg.MaxBackoff, w.cfg.Jitter)
	next := task
	next.Attempt++
	w.retries.Enqueue(retryItem{task: next, payload: payload}, backoff)
}

// drainRetries pulls ready retries off the delay queue and re-attempts them
// with a background context, since the original request context has long
// since returned to the caller by the time a backoff elapses.
func (w *Worker) drainRetries(ctx context.Context) {
	for {
		item, err := w.retries.DequeueContext(ctx)
		if err != nil {
			return
		}
		w.attempt(context.Background(), item.task, item.payload)
	}
}

func (w *Worker) ackSuccess(ctx context.Context, task model.WorkerTask) {
	event := model.AckEvent{
		Ack:         model.AckResult{MessageID: task.Message.ID, Status: "success"},
		Type:        model.AckDelivered,
		UserID:      task.Target.UserID,
		DeviceID:    task.Target.DeviceID,
		GatewayID:   task.Target.GatewayID,
		TimestampMs: time.Now().UnixMilli(),
	}
	if err := w.publisher.PublishAck(ctx, event); err != nil {
		logger.L().ErrorContext(ctx, "failed to publish delivery ack", "message_id", task.Message.ID, "error", err)
	}
}

func (w *Worker) ackFailure(ctx context.Context, task model.WorkerTask, sendErr error) {
	event := model.AckEvent{
		Ack: model.AckResult{
			MessageID:    task.Message.ID,
			Status:       "failed",
			ErrorMessage: sendErr.Error(),
		},
		Type:        model.AckDelivered,
		UserID:      task.Target.UserID,
		DeviceID:    task.Target.DeviceID,
		GatewayID:   task.Target.GatewayID,
		TimestampMs: time.Now().UnixMilli(),
	}
	if err := w.publisher.PublishAck(ctx, event); err != nil {
		logger.L().ErrorContext(ctx, "failed to publish delivery failure ack", "message_id", task.Message.ID, "error", err)
	}
}

func (w *Worker) sendToDLQ(ctx context.Context, task model.WorkerTask, lastErr error) {
	envelope := model.DLQEnvelope{
		Task:         task,
		LastError:    lastErr.Error(),
		AttemptCount: w.cfg.MaxAttempts,
		TimestampMs:  time.Now().UnixMilli(),
	}
	if err := w.publisher.PublishDLQ(ctx, envelope); err != nil {
		logger.L().ErrorContext(ctx, "failed to publish to dlq", "message_id", task.Message.ID, "error", err)
	}
	w.ackFailure(ctx, task, lastErr)
}
