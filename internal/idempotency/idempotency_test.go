package idempotency

import (
	"context"
	"testing"
	"time"

	cachememory "github.com/flare-im/message-core/pkg/cache/adapters/memory"
	"github.com/stretchr/testify/require"
)

func newStore() *Store {
	return New(cachememory.New(), time.Hour)
}

func TestReserve_FirstCallIsFresh(t *testing.T) {
	s := newStore()
	fresh, err := s.Reserve(context.Background(), "m1")
	require.NoError(t, err)
	require.True(t, fresh)
}

func TestReserve_SecondCallIsDuplicate(t *testing.T) {
	s := newStore()
	ctx := context.Background()

	_, err := s.Reserve(ctx, "m1")
	require.NoError(t, err)

	fresh, err := s.Reserve(ctx, "m1")
	require.NoError(t, err)
	require.False(t, fresh)
}

func TestReserve_RequiresMessageID(t *testing.T) {
	s := newStore()
	_, err := s.Reserve(context.Background(), "")
	require.Error(t, err)
}

func TestReserveDispatch_IndependentPerUser(t *testing.T) {
	s := newStore()
	ctx := context.Background()

	fresh1, err := s.ReserveDispatch(ctx, "m1", "u1")
	require.NoError(t, err)
	require.True(t, fresh1)

	fresh2, err := s.ReserveDispatch(ctx, "m1", "u2")
	require.NoError(t, err)
	require.True(t, fresh2)

	dup, err := s.ReserveDispatch(ctx, "m1", "u1")
	require.NoError(t, err)
	require.False(t, dup)
}

func TestReserveStorage_IndependentFromIngestReserve(t *testing.T) {
	s := newStore()
	ctx := context.Background()

	fresh, err := s.Reserve(ctx, "m1")
	require.NoError(t, err)
	require.True(t, fresh)

	freshStorage, err := s.ReserveStorage(ctx, "m1")
	require.NoError(t, err)
	require.True(t, freshStorage, "storage-side dedupe must not collide with the ingest reservation")

	dup, err := s.ReserveStorage(ctx, "m1")
	require.NoError(t, err)
	require.False(t, dup)
}

func TestOutcome_RoundTrips(t *testing.T) {
	s := newStore()
	ctx := context.Background()

	require.NoError(t, s.StoreOutcome(ctx, "m1", map[string]string{"status": "persisted"}))

	var got map[string]string
	require.NoError(t, s.Outcome(ctx, "m1", &got))
	require.Equal(t, "persisted", got["status"])
}
