// Package offlinepush adapts pkg/communication/push.Sender into the
// dispatcher.OfflinePublisher collaborator: a Normal message with no
// eligible connected device falls back to a mobile push notification
// instead of being dropped.
package offlinepush

import (
	"context"
	"fmt"

	"github.com/flare-im/message-core/internal/model"
	"github.com/flare-im/message-core/pkg/communication/push"
	"github.com/flare-im/message-core/pkg/errors"
	"github.com/flare-im/message-core/pkg/logger"
)

// TokenSource resolves a user's registered push tokens. It is separate
// from presence.Source: an offline user still has push tokens on file
// even though they have no connected device.
type TokenSource interface {
	PushTokens(ctx context.Context, userID string) ([]string, error)
}

// Publisher sends a best-effort push notification for messages the
// Dispatcher could not deliver over an active connection.
type Publisher struct {
	sender push.Sender
	tokens TokenSource
}

// New builds a Publisher.
func New(sender push.Sender, tokens TokenSource) *Publisher {
	return &Publisher{sender: sender, tokens: tokens}
}

// PublishOfflinePush sends a push notification for msg to userID's
// registered devices. A user with no tokens on file is logged and
// skipped rather than treated as an error, since that is an expected
// steady state for users who never opted into push.
func (p *Publisher) PublishOfflinePush(ctx context.Context, msg model.Message, userID string) error {
	tokens, err := p.tokens.PushTokens(ctx, userID)
	if err != nil {
		return errors.Wrap(err, "failed to resolve push tokens")
	}
	if len(tokens) == 0 {
		logger.L().InfoContext(ctx, "no push tokens on file, dropping offline push",
			"user_id", userID, "message_id", msg.ID)
		return nil
	}

	notification := &push.Message{
		Tokens:   tokens,
		Title:    notificationTitle(msg),
		Body:     notificationBody(msg),
		Priority: "high",
		Data: map[string]string{
			"message_id":      msg.ID,
			"conversation_id": msg.ConversationID,
		},
	}

	if err := p.sender.Send(ctx, notification); err != nil {
		return errors.Wrap(err, "push send failed")
	}
	return nil
}

func notificationTitle(msg model.Message) string {
	if msg.MessageTypeLabel != "" {
		return msg.MessageTypeLabel
	}
	return "New message"
}

func notificationBody(msg model.Message) string {
	if msg.ContentKind == model.ContentText && len(msg.Content) > 0 {
		return string(msg.Content)
	}
	return fmt.Sprintf("You have a new %s message", msg.ContentType)
}
