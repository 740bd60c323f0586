package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
)

// RedisGuard shares keys across processes with SET NX PX.
type RedisGuard struct {
	client    redis.UniversalClient
	keyPrefix string
}

func NewRedisGuard(client redis.UniversalClient, keyPrefix string) *RedisGuard {
	if keyPrefix == "" {
		keyPrefix = "manteia:submit:"
	}
	return &RedisGuard{client: client, keyPrefix: keyPrefix}
}

// DialRedis parses a redis:// URL and pings the server.
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func (g *RedisGuard) Acquire(ctx context.Context, key common.Hash, ttl time.Duration) (bool, error) {
	ok, err := g.client.SetNX(ctx, g.keyPrefix+key.Hex(), time.Now().UTC().Format(time.RFC3339Nano), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

func (g *RedisGuard) Release(ctx context.Context, key common.Hash) error {
	if err := g.client.Del(ctx, g.keyPrefix+key.Hex()).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
