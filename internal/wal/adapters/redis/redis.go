// Package redis is the production wal.Index, backed by a Redis set so the
// orchestrator can enumerate in-flight message IDs after a restart.
package redis

import (
	"context"

	"github.com/flare-im/message-core/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const setKey = "wal:index"

// Index stores the WAL's message-ID set in a single Redis SET.
type Index struct {
	client *redis.Client
}

// New wraps an existing redis client. The caller owns the client's
// lifecycle; Index has no Close of its own.
func New(client *redis.Client) *Index {
	return &Index{client: client}
}

func (i *Index) Add(ctx context.Context, messageID string) error {
	if err := i.client.SAdd(ctx, setKey, messageID).Err(); err != nil {
		return errors.Wrap(err, "failed to add wal index entry")
	}
	return nil
}

func (i *Index) Remove(ctx context.Context, messageID string) error {
	if err := i.client.SRem(ctx, setKey, messageID).Err(); err != nil {
		return errors.Wrap(err, "failed to remove wal index entry")
	}
	return nil
}

func (i *Index) List(ctx context.Context) ([]string, error) {
	ids, err := i.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list wal index")
	}
	return ids, nil
}
