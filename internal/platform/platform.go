// Package platform builds the shared infrastructure collaborators (cache,
// database, broker) every cmd entrypoint needs from one set of env-driven
// Config structs, so each binary's main only has to wire its own
// component together rather than re-deriving adapter selection.
package platform

import (
	"context"

	"github.com/flare-im/message-core/pkg/cache"
	cachememory "github.com/flare-im/message-core/pkg/cache/adapters/memory"
	cacheredis "github.com/flare-im/message-core/pkg/cache/adapters/redis"
	"github.com/flare-im/message-core/pkg/database/sql"
	sqlpostgres "github.com/flare-im/message-core/pkg/database/sql/adapters/postgres"
	sqlsqlite "github.com/flare-im/message-core/pkg/database/sql/adapters/sqlite"
	"github.com/flare-im/message-core/pkg/errors"
	"github.com/flare-im/message-core/pkg/logger"
	"github.com/flare-im/message-core/pkg/messaging"
	brokerkafka "github.com/flare-im/message-core/pkg/messaging/adapters/kafka"
	brokermemory "github.com/flare-im/message-core/pkg/messaging/adapters/memory"
)

// Config aggregates the driver-selected settings for every shared
// collaborator an entrypoint may need; a given binary only reads the
// fields it actually uses.
type Config struct {
	Cache  cache.Config
	DB     sql.Config
	Kafka  brokerkafka.Config
	Broker string `env:"BROKER_DRIVER" env-default:"kafka"`
}

// NewCache builds a cache.Cache for cfg.Cache.Driver.
func NewCache(cfg Config) (cache.Cache, error) {
	switch cfg.Cache.Driver {
	case "redis":
		return cacheredis.New(cfg.Cache)
	case "memory", "":
		return cachememory.New(), nil
	default:
		return nil, errors.InvalidArgument("unknown cache driver: "+cfg.Cache.Driver, nil)
	}
}

// NewDB builds a sql.SQL for cfg.DB.Driver.
func NewDB(cfg Config) (sql.SQL, error) {
	switch cfg.DB.Driver {
	case "postgres", "":
		return sqlpostgres.New(cfg.DB)
	case "sqlite":
		return sqlsqlite.New(cfg.DB)
	default:
		return nil, errors.InvalidArgument("unknown db driver: "+cfg.DB.Driver, nil)
	}
}

// NewBroker builds a messaging.Broker for cfg.Broker.
func NewBroker(ctx context.Context, cfg Config) (messaging.Broker, error) {
	switch cfg.Broker {
	case "kafka":
		return brokerkafka.New(cfg.Kafka)
	case "memory", "":
		return brokermemory.New(brokermemory.Config{}), nil
	default:
		return nil, errors.InvalidArgument("unknown broker driver: "+cfg.Broker, nil)
	}
}

// RunConsumer subscribes to topic under group and blocks until ctx is
// canceled or the consumer stops. Handler errors are logged and returned to
// the consumer unacknowledged, and what follows depends on the adapter: the
// Kafka adapter leaves the offset uncommitted and consumes again, so the
// message is redelivered; the in-memory adapter stops consuming and
// RunConsumer returns the error.
func RunConsumer(ctx context.Context, broker messaging.Broker, topic, group string, handler messaging.MessageHandler) error {
	consumer, err := broker.Consumer(topic, group)
	if err != nil {
		return errors.Wrap(err, "failed to create consumer")
	}
	defer consumer.Close()

	wrapped := func(ctx context.Context, msg *messaging.Message) error {
		if err := handler(ctx, msg); err != nil {
			logger.L().ErrorContext(ctx, "message handler failed", "topic", topic, "error", err)
			return err
		}
		return nil
	}

	return consumer.Consume(ctx, wrapped)
}
