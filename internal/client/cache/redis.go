// Package cache keeps a copy of the client allowlist in Redis so session
// starts do not hit the database.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"passport-id/internal/client"
)

const allowlistKey = "passport-id:clients:allowlist"

// RedisRegistry is a read-through cache in front of another Registry.
type RedisRegistry struct {
	client *redis.Client
	source client.Registry
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisRegistry wraps source with a Redis cache. logger may be nil.
func NewRedisRegistry(rc *redis.Client, source client.Registry, ttl time.Duration, logger *slog.Logger) *RedisRegistry {
	return &RedisRegistry{client: rc, source: source, ttl: ttl, logger: logger}
}

// ClientIDs serves the cached list, loading it from the source on a miss.
//
// A Redis failure falls back to the source; only a source failure is
// returned.
func (r *RedisRegistry) ClientIDs(ctx context.Context) ([]string, error) {
	ids, err := r.cached(ctx)
	if err == nil {
		return ids, nil
	}
	if !errors.Is(err, redis.Nil) && r.logger != nil {
		r.logger.WarnContext(ctx, "client allowlist cache read failed", "error", err)
	}

	ids, err = r.source.ClientIDs(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.store(ctx, ids); err != nil && r.logger != nil {
		r.logger.WarnContext(ctx, "client allowlist cache write failed", "error", err)
	}
	return ids, nil
}

// Invalidate drops the cached list so the next lookup reloads it.
func (r *RedisRegistry) Invalidate(ctx context.Context) error {
	if err := r.client.Del(ctx, allowlistKey).Err(); err != nil {
		return fmt.Errorf("invalidate client allowlist: %w", err)
	}
	return nil
}

func (r *RedisRegistry) cached(ctx context.Context) ([]string, error) {
	data, err := r.client.Get(ctx, allowlistKey).Bytes()
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("decode client allowlist: %w", err)
	}
	return ids, nil
}

func (r *RedisRegistry) store(ctx context.Context, ids []string) error {
	payload, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode client allowlist: %w", err)
	}
	if err := r.client.Set(ctx, allowlistKey, payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("save client allowlist: %w", err)
	}
	return nil
}
