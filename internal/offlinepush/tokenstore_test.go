package offlinepush

import (
	"context"
	"testing"

	sqlcfg "github.com/flare-im/message-core/pkg/database/sql"
	sqlitedriver "github.com/flare-im/message-core/pkg/database/sql/adapters/sqlite"
	"github.com/stretchr/testify/require"
)

func TestPushTokens_ReturnsAllRegisteredTokens(t *testing.T) {
	db, err := sqlitedriver.New(sqlcfg.Config{Driver: "sqlite", Name: ":memory:"})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, db.Get(ctx).AutoMigrate(&deviceToken{}))
	require.NoError(t, db.Get(ctx).Create(&deviceToken{UserID: "u1", Token: "tok-a"}).Error)
	require.NoError(t, db.Get(ctx).Create(&deviceToken{UserID: "u1", Token: "tok-b"}).Error)

	store := NewSQLTokenStore(db)
	tokens, err := store.PushTokens(ctx, "u1")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"tok-a", "tok-b"}, tokens)
}

func TestPushTokens_UnknownUserReturnsEmpty(t *testing.T) {
	db, err := sqlitedriver.New(sqlcfg.Config{Driver: "sqlite", Name: ":memory:"})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, db.Get(ctx).AutoMigrate(&deviceToken{}))

	store := NewSQLTokenStore(db)
	tokens, err := store.PushTokens(ctx, "ghost")
	require.NoError(t, err)
	require.Empty(t, tokens)
}
