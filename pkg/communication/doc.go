/*
Package communication provides messaging and notification services.

Subpackages:

  - push: Push notifications (FCM, APNs, in-memory)

Usage:

	import (
		"github.com/flare-im/message-core/pkg/communication/push"
		"github.com/flare-im/message-core/pkg/communication/push/adapters/fcm"
	)

	sender, err := fcm.New(ctx, cfg)
	err = sender.Send(ctx, &push.Message{Tokens: []string{token}, Title: "Hello"})
*/
package communication
