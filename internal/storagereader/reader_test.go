package storagereader

import (
	"context"
	"testing"
	"time"

	"github.com/flare-im/message-core/internal/model"
	"github.com/flare-im/message-core/internal/storagewriter"
	sqlcfg "github.com/flare-im/message-core/pkg/database/sql"
	sqlitedriver "github.com/flare-im/message-core/pkg/database/sql/adapters/sqlite"
	"github.com/stretchr/testify/require"
)

func newReader(t *testing.T) *Reader {
	t.Helper()
	db, err := sqlitedriver.New(sqlcfg.Config{Driver: "sqlite", Name: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, db.Get(context.Background()).AutoMigrate(&storagewriter.MessageRecord{}, &model.MessageState{}))

	for i := int64(1); i <= 3; i++ {
		rec := storagewriter.MessageRecord{
			ID: "m" + string(rune('0'+i)), ConversationID: "c1", Seq: i, Timestamp: time.Now(),
		}
		require.NoError(t, db.Get(context.Background()).Create(&rec).Error)
	}

	return New(db)
}

func TestQuery_ReturnsInSeqOrderAfterCursor(t *testing.T) {
	r := newReader(t)

	msgs, cursor, err := r.Query(context.Background(), Query{ConversationID: "c1", AfterSeq: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, int64(2), msgs[0].Seq)
	require.Equal(t, int64(3), msgs[1].Seq)
	require.Nil(t, cursor)
}

func TestQuery_RequiresConversationID(t *testing.T) {
	r := newReader(t)
	_, _, err := r.Query(context.Background(), Query{})
	require.Error(t, err)
}

func TestQuery_PaginatesWithNextCursor(t *testing.T) {
	r := newReader(t)

	msgs, cursor, err := r.Query(context.Background(), Query{ConversationID: "c1", AfterSeq: 0, Limit: 2})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.NotNil(t, cursor)
	require.Equal(t, int64(2), *cursor)
}

func TestQuery_ExcludesUserDeletedMessages(t *testing.T) {
	r := newReader(t)
	ctx := context.Background()

	state := model.MessageState{MessageID: "m1", UserID: "u1", IsDeleted: true}
	require.NoError(t, r.db.Get(ctx).Create(&state).Error)

	msgs, _, err := r.Query(ctx, Query{ConversationID: "c1", UserID: "u1", AfterSeq: 0, Limit: 10})
	require.NoError(t, err)

	for _, m := range msgs {
		require.NotEqual(t, "m1", m.ID)
	}
}
