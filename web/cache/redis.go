// Package cache holds the Redis connection used for short-lived counters.
// It supports both embedded Redis (miniredis) and an external Redis server.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/siteops/portal/logger"
)

// ErrNotInitialized is returned by every helper before InitRedis succeeds.
var ErrNotInitialized = errors.New("redis client not initialized")

var (
	client     *redis.Client
	miniRedis  *miniredis.Miniredis
	isEmbedded = true
)

// InitRedis initializes Redis client. If redisAddr is empty, starts embedded Redis.
// If redisAddr is provided, connects to external Redis server.
func InitRedis(ctx context.Context, redisAddr string) error {
	if redisAddr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("failed to start embedded Redis: %w", err)
		}
		miniRedis = mr
		client = redis.NewClient(&redis.Options{
			Addr: mr.Addr(),
		})
		isEmbedded = true
		logger.Info("Embedded Redis started on", mr.Addr())
		return nil
	}

	client = redis.NewClient(&redis.Options{
		Addr: redisAddr,
		DB:   0,
	})
	isEmbedded = false
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis at %s: %w", redisAddr, err)
	}
	logger.Info("Connected to external Redis at", redisAddr)
	return nil
}

// IsEmbedded returns true if using embedded Redis.
func IsEmbedded() bool {
	return isEmbedded
}

// Embedded returns the embedded server, nil when an external one is used.
func Embedded() *miniredis.Miniredis {
	return miniRedis
}

// Close closes the Redis connection and stops embedded Redis if running.
func Close() error {
	var err error
	if client != nil {
		err = client.Close()
		client = nil
	}
	if miniRedis != nil {
		miniRedis.Close()
		miniRedis = nil
	}
	return err
}

// Incr increments the counter at key and returns the new value. A counter
// created by this call expires after window.
func Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	if client == nil {
		return 0, ErrNotInitialized
	}
	n, err := client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		if err := client.Expire(ctx, key, window).Err(); err != nil {
			return n, err
		}
	}
	return n, nil
}

// TTL returns the remaining lifetime of key, or zero when it has none.
func TTL(ctx context.Context, key string) (time.Duration, error) {
	if client == nil {
		return 0, ErrNotInitialized
	}
	d, err := client.TTL(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, nil
	}
	return d, nil
}

// Delete removes a key from Redis.
func Delete(ctx context.Context, key string) error {
	if client == nil {
		return ErrNotInitialized
	}
	return client.Del(ctx, key).Err()
}
