// internal/common/database/redis.go
package database

import (
	"context"
	"fmt"
	"time"

	"shopping-assistant/internal/common/config"
	apperrors "shopping-assistant/internal/common/errors"

	"github.com/redis/go-redis/v9"
)

// RedisClient holds the catalog cache, consent flags and recently-viewed lists.
type RedisClient struct {
	Client *redis.Client
}

func NewRedis(cfg config.RedisConfig) (*RedisClient, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is empty")
	}

	opts := &redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	}
	if opts.PoolSize <= 0 {
		opts.PoolSize = 20
	}

	return &RedisClient{Client: redis.NewClient(opts)}, nil
}

func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return apperrors.NewDatabaseConnectionFailedError(fmt.Errorf("redis ping failed: %w", err))
	}
	return nil
}

func (c *RedisClient) Close() error {
	if c.Client != nil {
		return c.Client.Close()
	}
	return nil
}
