package offlinepush

import (
	"context"

	"github.com/flare-im/message-core/pkg/communication/push"
	"github.com/flare-im/message-core/pkg/communication/push/adapters/apns"
	"github.com/flare-im/message-core/pkg/communication/push/adapters/fcm"
	pushmemory "github.com/flare-im/message-core/pkg/communication/push/adapters/memory"
	"github.com/flare-im/message-core/pkg/errors"
)

// NewSender builds a push.Sender for cfg.Driver, wrapped with the package's
// observability decorator.
func NewSender(ctx context.Context, cfg push.Config) (push.Sender, error) {
	var (
		sender push.Sender
		err    error
	)
	switch cfg.Driver {
	case "fcm":
		sender, err = fcm.New(ctx, cfg)
	case "apns":
		sender, err = apns.New(cfg)
	case "memory", "":
		sender = pushmemory.New()
	default:
		return nil, errors.InvalidArgument("unknown push driver: "+cfg.Driver, nil)
	}
	if err != nil {
		return nil, err
	}
	return push.NewInstrumentedSender(sender), nil
}
