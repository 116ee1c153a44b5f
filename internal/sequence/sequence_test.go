package sequence

import (
	"context"
	"testing"

	cachememory "github.com/flare-im/message-core/pkg/cache/adapters/memory"
	"github.com/stretchr/testify/require"
)

func TestAllocate_StrictlyIncreasingPerConversation(t *testing.T) {
	alloc := New(cachememory.New(), nil)
	ctx := context.Background()

	var last int64
	for i := 0; i < 5; i++ {
		seq, err := alloc.Allocate(ctx, "c1")
		require.NoError(t, err)
		require.Greater(t, seq, last)
		last = seq
	}
}

func TestAllocate_IndependentPerConversation(t *testing.T) {
	alloc := New(cachememory.New(), nil)
	ctx := context.Background()

	seqC1, err := alloc.Allocate(ctx, "c1")
	require.NoError(t, err)
	seqC2, err := alloc.Allocate(ctx, "c2")
	require.NoError(t, err)

	require.Equal(t, int64(1), seqC1)
	require.Equal(t, int64(1), seqC2)
}

func TestAllocate_RequiresConversationID(t *testing.T) {
	alloc := New(cachememory.New(), nil)
	_, err := alloc.Allocate(context.Background(), "")
	require.Error(t, err)
}
