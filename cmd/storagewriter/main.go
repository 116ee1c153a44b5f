// Command storagewriter consumes the storage queue (spec §4.G) and
// persists every Normal message, projecting conversation and per-
// participant read-state alongside the durable row.
package main

import (
	"context"
	"encoding/json"
	"os/signal"
	"syscall"

	"github.com/flare-im/message-core/internal/idempotency"
	"github.com/flare-im/message-core/internal/model"
	"github.com/flare-im/message-core/internal/platform"
	"github.com/flare-im/message-core/internal/publisher"
	"github.com/flare-im/message-core/internal/storagewriter"
	"github.com/flare-im/message-core/pkg/config"
	"github.com/flare-im/message-core/pkg/logger"
	"github.com/flare-im/message-core/pkg/messaging"
)

type appConfig struct {
	platform.Config
	Log           logger.Config
	ConsumerGroup string `env:"CONSUMER_GROUP" env-default:"storagewriter"`
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
	if err := db.Get(ctx).AutoMigrate(
		&storagewriter.MessageRecord{}, &model.ConversationState{}, &model.ParticipantState{}, &model.MessageState{},
	); err != nil {
		logger.L().Error("failed to migrate schema", "error", err)
		return
	}

	broker, err := platform.NewBroker(ctx, cfg.Config)
	if err != nil {
		logger.L().Error("failed to build broker", "error", err)
		return
	}
	defer broker.Close()

	idem := idempotency.New(c, idempotency.DefaultTTL)
	pub := publisher.New(broker)
	defer pub.Close()
	writer := storagewriter.New(db, idem, nil, pub)

	handler := func(ctx context.Context, raw *messaging.Message) error {
		var msg model.Message
		if err := json.Unmarshal(raw.Payload, &msg); err != nil {
			return err
		}
		return writer.Handle(ctx, msg, msg.RecipientIDs)
	}

	logger.L().Info("storagewriter consuming", "topic", publisher.TopicStorage, "group", cfg.ConsumerGroup)
	if err := platform.RunConsumer(ctx, broker, publisher.TopicStorage, cfg.ConsumerGroup, handler); err != nil {
		logger.L().Error("consumer stopped", "error", err)
	}
}
