// Command ackconsumer consumes the ACK queue (spec §4.K): it folds
// persistence, delivery, client and read acknowledgements into hot-cache
// and durable read-model state.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/flare-im/message-core/internal/ack"
	"github.com/flare-im/message-core/internal/model"
	"github.com/flare-im/message-core/internal/platform"
	"github.com/flare-im/message-core/internal/publisher"
	"github.com/flare-im/message-core/internal/storagewriter"
	"github.com/flare-im/message-core/pkg/config"
	"github.com/flare-im/message-core/pkg/logger"
	"github.com/flare-im/message-core/pkg/messaging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type appConfig struct {
	platform.Config
	Log           logger.Config
	ConsumerGroup string `env:"CONSUMER_GROUP" env-default:"ackconsumer"`
	MetricsAddr   string `env:"METRICS_ADDR" env-default:":9091"`
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
		&storagewriter.MessageRecord{}, &model.MessageState{}, &model.ParticipantState{},
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

	registry := prometheus.NewRegistry()
	processor := ack.New(c, db, registry, ack.LingerDefault)
	defer processor.Close()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			logger.L().Error("metrics server stopped", "error", err)
		}
	}()

	handler := func(ctx context.Context, raw *messaging.Message) error {
		var event model.AckEvent
		if err := json.Unmarshal(raw.Payload, &event); err != nil {
			return err
		}
		return processor.Handle(ctx, event)
	}

	logger.L().Info("ackconsumer consuming", "topic", publisher.TopicAck, "group", cfg.ConsumerGroup)
	if err := platform.RunConsumer(ctx, broker, publisher.TopicAck, cfg.ConsumerGroup, handler); err != nil {
		logger.L().Error("consumer stopped", "error", err)
	}
}
