// Command pushworker consumes the per-device worker queue (spec §4.J): it
// sends one message to one device with classified retry/backoff, falling
// back to the dead-letter queue once its retry budget is exhausted.
package main

import (
	"context"
	"encoding/json"
	"os/signal"
	"syscall"

	"github.com/flare-im/message-core/internal/gatewaysender"
	"github.com/flare-im/message-core/internal/model"
	"github.com/flare-im/message-core/internal/platform"
	"github.com/flare-im/message-core/internal/presence"
	"github.com/flare-im/message-core/internal/presenceclient"
	"github.com/flare-im/message-core/internal/publisher"
	"github.com/flare-im/message-core/internal/worker"
	clientgrpc "github.com/flare-im/message-core/pkg/client/grpc"
	"github.com/flare-im/message-core/pkg/config"
	"github.com/flare-im/message-core/pkg/logger"
	"github.com/flare-im/message-core/pkg/messaging"
)

type appConfig struct {
	platform.Config
	Log           logger.Config
	ConsumerGroup string            `env:"CONSUMER_GROUP" env-default:"pushworker"`
	Presence      clientgrpc.Config `env-prefix:"PRESENCE_"`
	Gateway       clientgrpc.Config `env-prefix:"GATEWAY_"`
}

func main() {
	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		panic(err)
	}
	logger.Init(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	sender := gatewaysender.New(cfg.Gateway, nil)
	defer sender.Close()

	pub := publisher.New(broker)
	defer pub.Close()
	presenceCache := presence.New(presenceSource)
	w := worker.New(sender, presenceCache, pub, worker.DefaultConfig())
	defer w.Close()

	handler := func(ctx context.Context, raw *messaging.Message) error {
		var task model.WorkerTask
		if err := json.Unmarshal(raw.Payload, &task); err != nil {
			return err
		}
		payload, err := json.Marshal(task.Message)
		if err != nil {
			return err
		}
		return w.Handle(ctx, task, payload)
	}

	logger.L().Info("pushworker consuming", "topic", publisher.TopicDeliverWorker, "group", cfg.ConsumerGroup)
	if err := platform.RunConsumer(ctx, broker, publisher.TopicDeliverWorker, cfg.ConsumerGroup, handler); err != nil {
		logger.L().Error("consumer stopped", "error", err)
	}
}
