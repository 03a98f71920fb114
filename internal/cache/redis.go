package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Redis is a Cache shared between processes. Values are stored as JSON
// under Prefix+key with a native TTL.
type Redis[V any] struct {
	client *redis.Client
	prefix string
	logger zerolog.Logger
}

func NewRedis[V any](client *redis.Client, prefix string, logger zerolog.Logger) *Redis[V] {
	return &Redis[V]{client: client, prefix: prefix, logger: logger}
}

// Get treats every Redis failure as a miss; the caller refetches.
func (r *Redis[V]) Get(ctx context.Context, key string) (V, time.Time, bool) {
	var zero V
	raw, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, time.Time{}, false
	}
	if err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("cache: redis get failed")
		return zero, time.Time{}, false
	}
	var v V
	if err := json.Unmarshal(raw, &v); err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("cache: undecodable entry")
		return zero, time.Time{}, false
	}
	ttl, err := r.client.PTTL(ctx, r.prefix+key).Result()
	if err != nil || ttl <= 0 {
		return zero, time.Time{}, false
	}
	return v, time.Now().Add(ttl), true
}

func (r *Redis[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("cache: encode entry")
		return
	}
	if err := r.client.Set(ctx, r.prefix+key, raw, ttl).Err(); err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("cache: redis set failed")
	}
}
