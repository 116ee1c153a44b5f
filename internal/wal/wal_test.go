package wal

import (
	"context"
	"testing"
	"time"

	"github.com/flare-im/message-core/internal/model"
	walmemory "github.com/flare-im/message-core/internal/wal/adapters/memory"
	cachememory "github.com/flare-im/message-core/pkg/cache/adapters/memory"
	"github.com/stretchr/testify/require"
)

func newBuffer() *Buffer {
	return New(cachememory.New(), walmemory.New(), time.Hour)
}

func TestAppend_RequiresMessageID(t *testing.T) {
	b := newBuffer()
	err := b.Append(context.Background(), model.Message{})
	require.Error(t, err)
}

func TestAppendAndReplay_ReturnsAppendedEntry(t *testing.T) {
	b := newBuffer()
	ctx := context.Background()
	msg := model.Message{ID: "m1", ConversationID: "c1"}

	require.NoError(t, b.Append(ctx, msg))

	entries, err := b.Replay(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "m1", entries[0].Message.ID)
}

func TestRemove_ExcludesFromReplay(t *testing.T) {
	b := newBuffer()
	ctx := context.Background()
	msg := model.Message{ID: "m1", ConversationID: "c1"}

	require.NoError(t, b.Append(ctx, msg))
	require.NoError(t, b.Remove(ctx, "m1"))

	entries, err := b.Replay(ctx)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestReplay_MultipleEntriesIndependent(t *testing.T) {
	b := newBuffer()
	ctx := context.Background()

	require.NoError(t, b.Append(ctx, model.Message{ID: "m1", ConversationID: "c1"}))
	require.NoError(t, b.Append(ctx, model.Message{ID: "m2", ConversationID: "c1"}))
	require.NoError(t, b.Remove(ctx, "m1"))

	entries, err := b.Replay(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "m2", entries[0].Message.ID)
}
