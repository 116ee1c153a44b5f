// Package presence implements the Presence Cache (spec §4.D): a short-TTL
// view over an external presence source, batched so the Dispatcher can
// resolve every recipient of a message with one round trip instead of one
// per user.
package presence

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/flare-im/message-core/internal/model"
	"github.com/flare-im/message-core/pkg/datastructures/concurrentmap"
	"github.com/flare-im/message-core/pkg/errors"
)

// shardCount bounds lock contention on the cache's sharded map; presence
// lookups are read-heavy and come from a handful of dispatcher goroutines
// at a time, so a modest shard count is enough to avoid a single mutex.
const shardCount = 32

// TTL is how long a cached presence entry is trusted before it must be
// refreshed from Source, per spec §4.D.
const TTL = 5 * time.Second

// sweepEvery opportunistically evicts expired entries on roughly every
// Nth cache access, instead of running a background ticker goroutine.
const sweepEvery = 100

// Source is the external system of record for device connectivity,
// typically the gateway/session-registry tier.
type Source interface {
	// GetOnlineStatus returns the currently connected devices for each of
	// userIDs. Users with no connected device are simply absent from the
	// result, not represented with an empty slice.
	GetOnlineStatus(ctx context.Context, userIDs []string) (map[string][]model.DeliveryTarget, error)
}

type entry struct {
	targets   []model.DeliveryTarget
	expiresAt time.Time
}

// Cache batches presence lookups and serves them from a short-lived
// in-process cache, falling back to Source on miss or expiry.
type Cache struct {
	source  Source
	entries *concurrentmap.ShardedMap[string, entry]

	calls atomic.Uint64
}

// New builds a Cache backed by source.
func New(source Source) *Cache {
	return &Cache{source: source, entries: concurrentmap.New[string, entry](shardCount)}
}

// Resolve returns the current delivery targets for each of userIDs,
// refreshing any user whose cached entry is missing or expired in a
// single batched call to Source.
func (c *Cache) Resolve(ctx context.Context, userIDs []string) (map[string][]model.DeliveryTarget, error) {
	if len(userIDs) == 0 {
		return map[string][]model.DeliveryTarget{}, nil
	}

	c.maybeSweep()

	result := make(map[string][]model.DeliveryTarget, len(userIDs))
	var stale []string

	now := time.Now()
	for _, id := range userIDs {
		if e, ok := c.entries.Get(id); ok && now.Before(e.expiresAt) {
			result[id] = e.targets
		} else {
			stale = append(stale, id)
		}
	}

	if len(stale) == 0 {
		return result, nil
	}

	fresh, err := c.source.GetOnlineStatus(ctx, stale)
	if err != nil {
		return nil, errors.Wrap(err, "failed to refresh presence")
	}

	expiresAt := time.Now().Add(TTL)
	for _, id := range stale {
		targets := fresh[id]
		c.entries.Set(id, entry{targets: targets, expiresAt: expiresAt})
		result[id] = targets
	}

	return result, nil
}

// Invalidate drops a user's cached entry, forcing the next Resolve to hit
// Source. Callers use this after a device connects or disconnects if they
// cannot wait out the TTL.
func (c *Cache) Invalidate(userID string) {
	c.entries.Delete(userID)
}

func (c *Cache) maybeSweep() {
	if c.calls.Add(1)%sweepEvery != 0 {
		return
	}

	now := time.Now()
	var expired []string
	c.entries.Range(func(id string, e entry) bool {
		if !now.Before(e.expiresAt) {
			expired = append(expired, id)
		}
		return true
	})
	for _, id := range expired {
		c.entries.Delete(id)
	}
}
