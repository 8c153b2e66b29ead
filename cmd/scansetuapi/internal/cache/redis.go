package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis is a JSON cache. A nil client turns every call into a miss so the
// server runs the same code path without Redis.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger

	warnedUnavailable atomic.Bool
}

// Connect parses url and pings the server. An empty url, or a server that
// does not answer, yields nil so callers fall back to running without Redis.
func Connect(ctx context.Context, url string, logger *zap.Logger) *redis.Client {
	if url == "" {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		logger.Warn("invalid redis url, running without redis", zap.Error(err))
		return nil
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unavailable, running without redis", zap.Error(err))
		_ = client.Close()
		return nil
	}
	return client
}

// NewRedis wraps client; client may be nil.
func NewRedis(client *redis.Client, ttl time.Duration, logger *zap.Logger) *Redis {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{client: client, ttl: ttl, logger: logger}
}

// Enabled reports whether a Redis client is configured.
func (r *Redis) Enabled() bool {
	return r != nil && r.client != nil
}

func (r *Redis) warnUnavailableOnce(err error) {
	if r.warnedUnavailable.CompareAndSwap(false, true) {
		r.logger.Warn("redis cache error, serving from database", zap.Error(err))
	}
}

// GetJSON decodes key into out and reports whether it was found.
func (r *Redis) GetJSON(ctx context.Context, key string, out any) (bool, error) {
	if !r.Enabled() {
		return false, nil
	}
	b, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		r.warnUnavailableOnce(err)
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON stores value under key with the cache TTL.
func (r *Redis) SetJSON(ctx context.Context, key string, value any) error {
	if !r.Enabled() {
		return nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, b, r.ttl).Err(); err != nil {
		r.warnUnavailableOnce(err)
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// Delete removes keys.
func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if !r.Enabled() || len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		r.warnUnavailableOnce(err)
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}
