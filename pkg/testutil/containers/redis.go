//go:build integration

package containers

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"regform/internal/platform/config"
	platformredis "regform/internal/platform/redis"
)

// RedisContainer is a disposable Redis reached through the same client
// constructor the server uses.
type RedisContainer struct {
	Container *tcredis.RedisContainer
	Config    config.RedisConfig
	Client    *redis.Client
}

func NewRedisContainer(t *testing.T) *RedisContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("start redis container: %v", err)
	}
	url, err := container.ConnectionString(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("redis connection string: %v", err)
	}

	cfg := config.RedisConfig{
		URL:         url,
		PoolSize:    4,
		DialTimeout: config.Duration{Duration: 5 * time.Second},
	}
	client, err := platformredis.New(ctx, cfg)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("connect to redis: %v", err)
	}
	return &RedisContainer{Container: container, Config: cfg, Client: client.Client}
}

// DeletePrefix removes every key under prefix so suites sharing the
// container start from an empty store.
func (r *RedisContainer) DeletePrefix(ctx context.Context, prefix string) error {
	iter := r.Client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return r.Client.Del(ctx, keys...).Err()
}
