// Package cache holds the Redis-backed helpers used to coordinate writers
// across API instances.
package cache

import (
	"context"
	"fmt"
	"net"

	"auction-house/internal/config"

	"github.com/redis/go-redis/v9"
)

// NewClient creates a Redis client and pings it to verify connectivity.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	return rdb, nil
}
