package presence

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/flare-im/message-core/internal/model"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	calls atomic.Int64
	data  map[string][]model.DeliveryTarget
}

func (f *fakeSource) GetOnlineStatus(_ context.Context, userIDs []string) (map[string][]model.DeliveryTarget, error) {
	f.calls.Add(1)
	out := make(map[string][]model.DeliveryTarget, len(userIDs))
	for _, id := range userIDs {
		out[id] = f.data[id]
	}
	return out, nil
}

func TestResolve_MissesHitSourceOnce(t *testing.T) {
	src := &fakeSource{data: map[string][]model.DeliveryTarget{
		"u1": {{UserID: "u1", DeviceID: "d1"}},
	}}
	c := New(src)

	res, err := c.Resolve(context.Background(), []string{"u1"})
	require.NoError(t, err)
	require.Len(t, res["u1"], 1)
	require.Equal(t, int64(1), src.calls.Load())

	_, err = c.Resolve(context.Background(), []string{"u1"})
	require.NoError(t, err)
	require.Equal(t, int64(1), src.calls.Load(), "second resolve within TTL should not hit source again")
}

func TestResolve_UserWithNoDevicesHasNoTargets(t *testing.T) {
	src := &fakeSource{data: map[string][]model.DeliveryTarget{}}
	c := New(src)

	res, err := c.Resolve(context.Background(), []string{"offline-user"})
	require.NoError(t, err)
	require.Empty(t, res["offline-user"])
}

func TestInvalidate_ForcesRefresh(t *testing.T) {
	src := &fakeSource{data: map[string][]model.DeliveryTarget{
		"u1": {{UserID: "u1", DeviceID: "d1"}},
	}}
	c := New(src)

	_, err := c.Resolve(context.Background(), []string{"u1"})
	require.NoError(t, err)

	c.Invalidate("u1")

	_, err = c.Resolve(context.Background(), []string{"u1"})
	require.NoError(t, err)
	require.Equal(t, int64(2), src.calls.Load())
}

func TestResolve_EmptyInputShortCircuits(t *testing.T) {
	src := &fakeSource{}
	c := New(src)

	res, err := c.Resolve(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, res)
	require.Equal(t, int64(0), src.calls.Load())
}
