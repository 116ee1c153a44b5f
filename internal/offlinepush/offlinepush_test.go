package offlinepush

import (
	"context"
	"testing"

	"github.com/flare-im/message-core/internal/model"
	pushmemory "github.com/flare-im/message-core/pkg/communication/push/adapters/memory"
	"github.com/stretchr/testify/require"
)

type fakeTokens struct {
	tokens map[string][]string
}

func (f *fakeTokens) PushTokens(ctx context.Context, userID string) ([]string, error) {
	return f.tokens[userID], nil
}

func TestPublishOfflinePush_SendsToRegisteredTokens(t *testing.T) {
	sender := pushmemory.New()
	tokens := &fakeTokens{tokens: map[string][]string{"u1": {"tok-a", "tok-b"}}}
	p := New(sender, tokens)

	msg := model.Message{ID: "m1", ConversationID: "c1", ContentType: "text", ContentKind: model.ContentText, Content: []byte("hi")}
	require.NoError(t, p.PublishOfflinePush(context.Background(), msg, "u1"))

	sent := sender.(*pushmemory.Sender).SentMessages()
	require.Len(t, sent, 1)
	require.Equal(t, []string{"tok-a", "tok-b"}, sent[0].Tokens)
	require.Equal(t, "hi", sent[0].Body)
}

func TestPublishOfflinePush_NoTokensIsNotAnError(t *testing.T) {
	sender := pushmemory.New()
	tokens := &fakeTokens{tokens: map[string][]string{}}
	p := New(sender, tokens)

	require.NoError(t, p.PublishOfflinePush(context.Background(), model.Message{ID: "m1"}, "u1"))
	require.Empty(t, sender.(*pushmemory.Sender).SentMessages())
}
