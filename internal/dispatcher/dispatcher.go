// Package dispatcher implements the Delivery Dispatcher (spec §4.I): the
// delivery-queue consumer that resolves presence, applies a push strategy
// per recipient, and hands off one task per surviving device to the
// Worker.
package dispatcher

import (
	"context"
	"sort"
	"sync"

	"github.com/flare-im/message-core/internal/idempotency"
	"github.com/flare-im/message-core/internal/model"
	"github.com/flare-im/message-core/internal/presence"
	"github.com/flare-im/message-core/internal/publisher"
	"github.com/flare-im/message-core/pkg/concurrency"
	"github.com/flare-im/message-core/pkg/logger"
)

// activeWindowMs bounds how recently a device must have been active to
// count as eligible under the Active strategy.
const activeWindowMs = 30_000

// fanOutWorkers bounds concurrent per-device publishes; a single
// DeliveryTask rarely addresses more devices than this at once, and the
// pool keeps one slow publish from serializing the rest of the task.
const fanOutWorkers = 8
const fanOutQueueSize = 256

// OfflinePublisher hands an offline/undeliverable Normal message to the
// mobile-push provider collaborator. Notification messages are dropped
// silently instead of routed here.
type OfflinePublisher interface {
	PublishOfflinePush(ctx context.Context, msg model.Message, userID string) error
}

// Dispatcher turns one DeliveryTask into per-device WorkerTasks.
type Dispatcher struct {
	presence   *presence.Cache
	idempotent *idempotency.Store
	publisher  *publisher.Publisher
	offline    OfflinePublisher
	pool       *concurrency.WorkerPool
}

// New builds a Dispatcher. The returned Dispatcher owns a worker pool that
// fans per-device publishes for one DeliveryTask out concurrently; callers
// must Close it when done.
func New(p *presence.Cache, idem *idempotency.Store, pub *publisher.Publisher, offline OfflinePublisher) *Dispatcher {
	pool := concurrency.NewWorkerPool(fanOutWorkers, fanOutQueueSize)
	pool.Start(context.Background())
	return &Dispatcher{presence: p, idempotent: idem, publisher: pub, offline: offline, pool: pool}
}

// Close stops the fan-out worker pool, waiting for in-flight publishes.
func (d *Dispatcher) Close() {
	d.pool.Stop()
}

// Handle resolves task.UserIDs against presence, classifies each recipient,
// and enqueues per-device WorkerTasks for everyone reachable.
func (d *Dispatcher) Handle(ctx context.Context, task model.DeliveryTask) error {
	targets, err := d.presence.Resolve(ctx, task.UserIDs)
	if err != nil {
		return err
	}

	for _, userID := range task.UserIDs {
		fresh, err := d.idempotent.ReserveDispatch(ctx, task.Message.ID, userID)
		if err != nil {
			logger.L().ErrorContext(ctx, "dispatch reservation failed", "message_id", task.Message.ID, "user_id", userID, "error", err)
			continue
		}
		if !fresh {
			continue
		}

		devices := targets[userID]
		eligible := selectDevices(devices, task.PushOptions.Strategy)

		if len(eligible) == 0 {
			d.handleOffline(ctx, task.Message, userID)
			continue
		}

		var wg sync.WaitGroup
		for _, dev := range eligible {
			wg.Add(1)
			dev := dev
			d.pool.Submit(func(_ context.Context) {
				defer wg.Done()
				workerTask := model.WorkerTask{Message: task.Message, Target: dev, Attempt: 0}
				if err := d.publisher.PublishWorkerTask(ctx, workerTask); err != nil {
					logger.L().ErrorContext(ctx, "failed to publish worker task", "message_id", task.Message.ID,
						"user_id", userID, "device_id", dev.DeviceID, "error", err)
				}
			})
		}
		wg.Wait()
	}

	return nil
}

func (d *Dispatcher) handleOffline(ctx context.Context, msg model.Message, userID string) {
	if msg.Class == model.Notification {
		return
	}
	if d.offline == nil {
		logger.L().WarnContext(ctx, "no offline push collaborator configured, dropping", "message_id", msg.ID, "user_id", userID)
		return
	}
	if err := d.offline.PublishOfflinePush(ctx, msg, userID); err != nil {
		logger.L().ErrorContext(ctx, "offline push publish failed", "message_id", msg.ID, "user_id", userID, "error", err)
	}
}

// selectDevices applies strategy, falling back to AllDevices for an
// unrecognized or empty strategy per spec §4.I step 3.
func selectDevices(devices []model.DeliveryTarget, strategy model.PushStrategy) []model.DeliveryTarget {
	switch strategy {
	case model.StrategyBestDevice:
		return bestDevice(devices)
	case model.StrategyHighPriority:
		return filter(devices, func(d model.DeliveryTarget) bool {
			highPriority := d.DevicePriority == model.PriorityCritical || d.DevicePriority == model.PriorityHigh
			goodQuality := d.Quality == model.QualityExcellent || d.Quality == model.QualityGood
			return highPriority && goodQuality
		})
	case model.StrategyActive:
		return filter(devices, func(d model.DeliveryTarget) bool {
			return d.Quality.Rank() < model.QualityPoor.Rank() && d.LastActiveMs <= activeWindowMs
		})
	default:
		return filter(devices, func(d model.DeliveryTarget) bool {
			return d.DevicePriority != model.PriorityLow && d.Quality != model.QualityUnavailable
		})
	}
}

// bestDevice picks the single device maximizing (quality, -rtt)
// lexicographically: best quality first, lowest RTT breaking ties.
func bestDevice(devices []model.DeliveryTarget) []model.DeliveryTarget {
	eligible := filter(devices, func(d model.DeliveryTarget) bool {
		return d.Quality != model.QualityUnavailable
	})
	if len(eligible) == 0 {
		return nil
	}

	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].Quality.Rank() != eligible[j].Quality.Rank() {
			return eligible[i].Quality.Rank() < eligible[j].Quality.Rank()
		}
		return eligible[i].RTTMillis < eligible[j].RTTMillis
	})
	return eligible[:1]
}

func filter(devices []model.DeliveryTarget, keep func(model.DeliveryTarget) bool) []model.DeliveryTarget {
	out := make([]model.DeliveryTarget, 0, len(devices))
	for _, d := range devices {
		if keep(d) {
			out = append(out, d)
		}
	}
	return out
}
