package storagewriter

import (
	"context"
	"testing"
	"time"

	"github.com/flare-im/message-core/internal/idempotency"
	"github.com/flare-im/message-core/internal/model"
	"github.com/flare-im/message-core/internal/publisher"
	sqlitedriver "github.com/flare-im/message-core/pkg/database/sql/adapters/sqlite"
	sqlcfg "github.com/flare-im/message-core/pkg/database/sql"
	cachememory "github.com/flare-im/message-core/pkg/cache/adapters/memory"
	brokermemory "github.com/flare-im/message-core/pkg/messaging/adapters/memory"
	"github.com/stretchr/testify/require"
)

func newWriter(t *testing.T) *Writer {
	t.Helper()
	db, err := sqlitedriver.New(sqlcfg.Config{Driver: "sqlite", Name: ":memory:"})
	require.NoError(t, err)

	require.NoError(t, db.Get(context.Background()).AutoMigrate(
		&MessageRecord{}, &model.ConversationState{}, &model.ParticipantState{}, &model.MessageState{},
	))

	idem := idempotency.New(cachememory.New(), time.Hour)
	broker := brokermemory.New(brokermemory.Config{BufferSize: 8})
	pub := publisher.New(broker)
	return New(db, idem, nil, pub)
}

func TestHandle_PersistsMessageAndProjectsState(t *testing.T) {
	w := newWriter(t)
	ctx := context.Background()

	msg := model.Message{
		ID: "m1", ConversationID: "c1", SenderID: "u1",
		Seq: 1, Timestamp: time.Now(), ShardKey: "c1", Class: model.Normal,
	}
	require.NoError(t, w.Handle(ctx, msg, []string{"u1", "u2"}))

	var record MessageRecord
	require.NoError(t, w.db.Get(ctx).First(&record, "id = ?", "m1").Error)
	require.Equal(t, "c1", record.ConversationID)

	var convState model.ConversationState
	require.NoError(t, w.db.Get(ctx).First(&convState, "conversation_id = ?", "c1").Error)
	require.Equal(t, "m1", convState.LastMessageID)

	var participant model.ParticipantState
	require.NoError(t, w.db.Get(ctx).First(&participant, "conversation_id = ? AND user_id = ?", "c1", "u2").Error)
	require.Equal(t, int64(1), participant.UnreadCount)
}

func TestHandle_SenderExcludedFromParticipantProjection(t *testing.T) {
	w := newWriter(t)
	ctx := context.Background()

	msg := model.Message{ID: "m1", ConversationID: "c1", SenderID: "u1", Seq: 1, Timestamp: time.Now(), ShardKey: "c1"}
	require.NoError(t, w.Handle(ctx, msg, []string{"u1"}))

	var count int64
	w.db.Get(ctx).Model(&model.ParticipantState{}).Where("conversation_id = ?", "c1").Count(&count)
	require.Equal(t, int64(0), count)
}

func TestHandle_DuplicateMessageIsSkipped(t *testing.T) {
	w := newWriter(t)
	ctx := context.Background()

	msg := model.Message{ID: "m1", ConversationID: "c1", SenderID: "u1", Seq: 1, Timestamp: time.Now(), ShardKey: "c1"}
	require.NoError(t, w.Handle(ctx, msg, nil))
	require.NoError(t, w.Handle(ctx, msg, nil))

	var count int64
	w.db.Get(ctx).Model(&MessageRecord{}).Where("id = ?", "m1").Count(&count)
	require.Equal(t, int64(1), count)
}
