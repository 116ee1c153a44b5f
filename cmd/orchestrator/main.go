// Command orchestrator serves the ingest RPC (spec §6): it validates,
// classifies, deduplicates, sequences and durably buffers every inbound
// message before dual-publishing it to the storage and delivery queues.
package main

import (
	"context"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/flare-im/message-core/internal/idempotency"
	"github.com/flare-im/message-core/internal/orchestrator"
	"github.com/flare-im/message-core/internal/platform"
	"github.com/flare-im/message-core/internal/publisher"
	"github.com/flare-im/message-core/internal/sequence"
	"github.com/flare-im/message-core/internal/transport/grpcjson"
	"github.com/flare-im/message-core/internal/wal"
	walmemory "github.com/flare-im/message-core/internal/wal/adapters/memory"
	walredis "github.com/flare-im/message-core/internal/wal/adapters/redis"
	"github.com/flare-im/message-core/pkg/concurrency/distlock"
	distlockmemory "github.com/flare-im/message-core/pkg/concurrency/distlock/adapters/memory"
	distlockredis "github.com/flare-im/message-core/pkg/concurrency/distlock/adapters/redis"
	"github.com/flare-im/message-core/pkg/config"
	"github.com/flare-im/message-core/pkg/logger"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
)

type appConfig struct {
	platform.Config
	Log       logger.Config
	GRPCAddr  string `env:"GRPC_ADDR" env-default:":9090"`
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

	redisClient := redisClientFor(cfg)
	if redisClient != nil {
		defer redisClient.Close()
	}

	walIndex := walIndexFor(redisClient)
	seq := sequence.New(c, db)
	buf := wal.New(c, walIndex, wal.DefaultTTL)
	idem := idempotency.New(c, idempotency.DefaultTTL)
	pub := publisher.New(broker)
	defer pub.Close()

	replayWAL(ctx, buf, pub, lockerFor(redisClient))

	svc := orchestrator.New(seq, buf, idem, pub)

	server := grpc.NewServer()
	server.RegisterService(&grpcjson.ServiceDesc, grpcjson.NewService(svc))

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.L().Error("failed to listen", "addr", cfg.GRPCAddr, "error", err)
		return
	}

	go func() {
		<-ctx.Done()
		logger.L().Info("shutting down orchestrator", "grace_period", 10*time.Second)
		server.GracefulStop()
	}()

	logger.L().Info("orchestrator listening", "addr", cfg.GRPCAddr)
	if err := server.Serve(lis); err != nil {
		logger.L().Error("grpc server stopped", "error", err)
	}
}

// redisClientFor returns a raw redis client to back the WAL index and the
// replay distributed lock when the cache driver is redis, nil otherwise.
func redisClientFor(cfg appConfig) *redis.Client {
	if cfg.Config.Cache.Driver != "redis" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Config.Cache.Host + ":" + cfg.Config.Cache.Port,
		Password: cfg.Config.Cache.Password,
		DB:       cfg.Config.Cache.DB,
	})
}

// walIndexFor picks a wal.Index backed by client when one is available
// (redis, so replay survives a process restart), memory otherwise.
func walIndexFor(client *redis.Client) wal.Index {
	if client == nil {
		return walmemory.New()
	}
	return walredis.New(client)
}

// lockerFor picks a distlock.Locker matching the wal index's backing
// store: redis in production so replay is serialized across replicas,
// memory (mutual exclusion within this process only) otherwise.
func lockerFor(client *redis.Client) distlock.Locker {
	if client == nil {
		return distlockmemory.New()
	}
	return distlockredis.New(client, "message-core:")
}

// replayWALLockTTL bounds how long one replica may hold the replay lock;
// it only needs to cover one pass over the buffer's index.
const replayWALLockTTL = 30 * time.Second

// replayWAL re-publishes every entry still in the write-ahead buffer from
// a previous run, serialized across replicas by locker so only one
// instance replays after a coordinated restart. A failure to acquire the
// lock means another replica is already replaying; this one just serves
// new traffic.
func replayWAL(ctx context.Context, buf *wal.Buffer, pub *publisher.Publisher, locker distlock.Locker) {
	lock := locker.NewLock("wal-replay", replayWALLockTTL)
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		logger.L().Error("wal replay lock acquisition failed, skipping replay", "error", err)
		return
	}
	if !acquired {
		logger.L().Info("another replica is replaying the wal, skipping")
		return
	}
	defer lock.Release(ctx)

	entries, err := buf.Replay(ctx)
	if err != nil {
		logger.L().Error("wal replay failed", "error", err)
		return
	}

	for _, entry := range entries {
		if err := pub.PublishBoth(ctx, entry.Message); err != nil {
			logger.L().Error("failed to re-publish wal entry", "message_id", entry.Message.ID, "error", err)
			continue
		}
		if err := buf.Remove(ctx, entry.Message.ID); err != nil {
			logger.L().Warn("failed to remove replayed wal entry", "message_id", entry.Message.ID, "error", err)
		}
	}
	logger.L().Info("wal replay complete", "entries", len(entries))
}
