package ack

import (
	"context"
	"testing"
	"time"

	"github.com/flare-im/message-core/internal/model"
	"github.com/flare-im/message-core/internal/storagewriter"
	cachememory "github.com/flare-im/message-core/pkg/cache/adapters/memory"
	sqlcfg "github.com/flare-im/message-core/pkg/database/sql"
	sqlitedriver "github.com/flare-im/message-core/pkg/database/sql/adapters/sqlite"
	"github.com/stretchr/testify/require"
)

func newProcessor(t *testing.T) *Processor {
	t.Helper()
	db, err := sqlitedriver.New(sqlcfg.Config{Driver: "sqlite", Name: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, db.Get(context.Background()).AutoMigrate(
		&storagewriter.MessageRecord{}, &model.MessageState{}, &model.ParticipantState{},
	))
	return New(cachememory.New(), db, nil, 10*time.Millisecond)
}

func TestHandle_PersistedAckUpdatesMessageStatus(t *testing.T) {
	p := newProcessor(t)
	ctx := context.Background()

	require.NoError(t, p.db.Get(ctx).Create(&storagewriter.MessageRecord{ID: "m1", Status: string(model.StatusCreated)}).Error)

	require.NoError(t, p.Handle(ctx, model.AckEvent{
		Ack: model.AckResult{MessageID: "m1", Status: "success"}, Type: model.AckPersisted,
	}))
	p.Close()

	var rec storagewriter.MessageRecord
	require.NoError(t, p.db.Get(ctx).First(&rec, "id = ?", "m1").Error)
	require.Equal(t, string(model.StatusPersisted), rec.Status)
}

func TestHandle_DeliveredAckUpsertsMessageState(t *testing.T) {
	p := newProcessor(t)
	ctx := context.Background()

	require.NoError(t, p.Handle(ctx, model.AckEvent{
		Ack: model.AckResult{MessageID: "m1", Status: "success"}, Type: model.AckDelivered, UserID: "u1",
	}))
	p.Close()

	var state model.MessageState
	require.NoError(t, p.db.Get(ctx).First(&state, "message_id = ? AND user_id = ?", "m1", "u1").Error)
	require.True(t, state.IsDelivered)
}

func TestHandle_ReadAckBumpsParticipantStateAndRecomputesUnread(t *testing.T) {
	p := newProcessor(t)
	ctx := context.Background()

	require.NoError(t, p.db.Get(ctx).Create(&storagewriter.MessageRecord{ID: "m1", ConversationID: "c1", Seq: 5}).Error)
	require.NoError(t, p.db.Get(ctx).Create(&model.ParticipantState{ConversationID: "c1", UserID: "u1", LastSyncSeq: 7}).Error)

	require.NoError(t, p.Handle(ctx, model.AckEvent{
		Ack: model.AckResult{MessageID: "m1", Status: "success"}, Type: model.AckRead, UserID: "u1", AckSeq: 5,
	}))
	p.Close()

	var participant model.ParticipantState
	require.NoError(t, p.db.Get(ctx).First(&participant, "conversation_id = ? AND user_id = ?", "c1", "u1").Error)
	require.Equal(t, int64(5), participant.LastReadSeq)
	require.Equal(t, int64(2), participant.UnreadCount)

	var state model.MessageState
	require.NoError(t, p.db.Get(ctx).First(&state, "message_id = ? AND user_id = ?", "m1", "u1").Error)
	require.True(t, state.IsRead)
}

func TestHandle_UpdatesHotCacheImmediately(t *testing.T) {
	p := newProcessor(t)
	ctx := context.Background()

	require.NoError(t, p.Handle(ctx, model.AckEvent{
		Ack: model.AckResult{MessageID: "m1", Status: "success"}, Type: model.AckClient,
	}))

	var cached model.AckEvent
	require.NoError(t, p.cache.Get(ctx, hotKey("m1"), &cached))
	require.Equal(t, model.AckClient, cached.Type)

	p.Close()
}
