// Command dispatcher consumes the delivery queue (spec §4.I): it resolves
// presence for every recipient of a DeliveryTask, applies the message's
// push strategy, and hands off one task per surviving device to the
// worker queue, or to offline push when nothing is reachable.
package main

import (
	"context"
	"encoding/json"
	"os/signal"
	"syscall"

	"github.com/flare-im/message-core/internal/dispatcher"
	"github.com/flare-im/message-core/internal/idempotency"
	"github.com/flare-im/message-core/internal/model"
	"github.com/flare-im/message-core/internal/offlinepush"
	"github.com/flare-im/message-core/internal/platform"
	"github.com/flare-im/message-core/internal/presence"
	"github.com/flare-im/message-core/internal/presenceclient"
	"github.com/flare-im/message-core/internal/publisher"
	clientgrpc "github.com/flare-im/message-core/pkg/client/grpc"
	"github.com/flare-im/message-core/pkg/communication/push"
	"github.com/flare-im/message-core/pkg/config"
	"github.com/flare-im/message-core/pkg/logger"
	"github.com/flare-im/message-core/pkg/messaging"
)

type appConfig struct {
	platform.Config
	Log           logger.Config
	ConsumerGroup string             `env:"CONSUMER_GROUP" env-default:"dispatcher"`
	Presence      clientgrpc.Config  `env-prefix:"PRESENCE_"`
	Push          push.Config
}

func main() {
	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		panic(err)
	}
	logger.Init(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := platform.NewCache(cfg.Config)
	if err != nil {
		logger.L().Error("failed to build cache", "error", err)
		return
	}
	defer c.Close()

	db, err := platform.NewDB(cfg.Config)
	if err != nil {
		logger.L().Error("failed to build database", "error", err)
		return
	}
	defer db.Close()

	broker, err := platform.NewBroker(ctx, cfg.Config)
	if err != nil {
		logger.L().Error("failed to build broker", "error", err)
		return
	}
	defer broker.Close()

	presenceSource, err := presenceclient.New(ctx, cfg.Presence)
	if err != nil {
		logger.L().Error("failed to build presence client", "error", err)
		return
	}
	defer presenceSource.Close()

	pushSender, err := offlinepush.NewSender(ctx, cfg.Push)
	if err != nil {
		logger.L().Error("failed to build push sender", "error", err)
		return
	}
	defer pushSender.Close()

	idem := idempotency.New(c, idempotency.DefaultTTL)
	pub := publisher.New(broker)
	defer pub.Close()
	presenceCache := presence.New(presenceSource)
	offline := offlinepush.New(pushSender, offlinepush.NewSQLTokenStore(db))
	disp := dispatcher.New(presenceCache, idem, pub, offline)
	defer disp.Close()

	handler := func(ctx context.Context, raw *messaging.Message) error {
		var task model.DeliveryTask
		if err := json.Unmarshal(raw.Payload, &task); err != nil {
			return err
		}
		return disp.Handle(ctx, task)
	}

	logger.L().Info("dispatcher consuming", "topic", publisher.TopicDeliver, "group", cfg.ConsumerGroup)
	if err := platform.RunConsumer(ctx, broker, publisher.TopicDeliver, cfg.ConsumerGroup, handler); err != nil {
		logger.L().Error("consumer stopped", "error", err)
	}
}
