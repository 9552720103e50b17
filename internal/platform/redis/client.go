// Package redis connects the Redis registration store.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"regform/internal/platform/config"
)

// ErrNotConfigured is returned when no Redis URL is set.
var ErrNotConfigured = errors.New("redis URL is not configured")

// Client is a pinged go-redis client built from config.RedisConfig.
type Client struct {
	*redis.Client
}

// New parses cfg.URL, applies the pool and timeout settings that are set
// and pings the server.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, ErrNotConfigured
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	applyOverrides(opts, cfg)

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Join(fmt.Errorf("ping redis: %w", err), client.Close())
	}
	return &Client{Client: client}, nil
}

func applyOverrides(opts *redis.Options, cfg config.RedisConfig) {
	setIf(&opts.PoolSize, cfg.PoolSize)
	setIf(&opts.MinIdleConns, cfg.MinIdleConns)
	setIf(&opts.DialTimeout, cfg.DialTimeout.Duration)
	setIf(&opts.ReadTimeout, cfg.ReadTimeout.Duration)
	setIf(&opts.WriteTimeout, cfg.WriteTimeout.Duration)
}

func setIf[T int | ~int64](dst *T, v T) {
	if v > 0 {
		*dst = v
	}
}

// Health pings the server; /healthz reports it.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
