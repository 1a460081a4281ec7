// internal/pkg/dedupe/redis.go
package dedupe

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Redis struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedis(client redis.UniversalClient, prefix string, ttl time.Duration) *Redis {
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

func (r *Redis) Seen(ctx context.Context, id string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(id)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check dedupe key: %w", err)
	}
	return n > 0, nil
}

// Mark sets the key only if absent, so the first marker's ttl stands.
func (r *Redis) Mark(ctx context.Context, id string) error {
	if err := r.client.SetNX(ctx, r.key(id), 1, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set dedupe key: %w", err)
	}
	return nil
}

func (r *Redis) key(id string) string {
	return r.prefix + id
}
