package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"time"
)

// JSONCache is a best-effort read-through cache. Redis failures are logged
// and treated as misses; the database stays the source of truth.
type JSONCache[T any] struct {
	RDB       *redis.Client
	KeyFormat string
	TTL       time.Duration
	Log       *zap.SugaredLogger
}

func NewJSONCache[T any](rdb *redis.Client, keyFormat string, ttl time.Duration, log *zap.SugaredLogger) *JSONCache[T] {
	return &JSONCache[T]{RDB: rdb, KeyFormat: keyFormat, TTL: ttl, Log: log}
}

func (c *JSONCache[T]) key(id string) string { return fmt.Sprintf(c.KeyFormat, id) }

func (c *JSONCache[T]) Get(ctx context.Context, id string) (T, bool) {
	var zero T
	s, err := c.RDB.Get(ctx, c.key(id)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.warn("cache get failed", id, err)
		}
		return zero, false
	}
	var v T
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		c.warn("cache entry corrupt", id, err)
		return zero, false
	}
	return v, true
}

func (c *JSONCache[T]) Set(ctx context.Context, id string, v T) {
	c.SetTTL(ctx, id, v, c.TTL)
}

// SetTTL stores v with its own expiry instead of the cache default.
func (c *JSONCache[T]) SetTTL(ctx context.Context, id string, v T, ttl time.Duration) {
	b, err := json.Marshal(v)
	if err != nil {
		c.warn("cache encode failed", id, err)
		return
	}
	if err := c.RDB.Set(ctx, c.key(id), b, ttl).Err(); err != nil {
		c.warn("cache set failed", id, err)
	}
}

func (c *JSONCache[T]) Forget(ctx context.Context, id string) {
	if err := c.RDB.Del(ctx, c.key(id)).Err(); err != nil {
		c.warn("cache delete failed", id, err)
	}
}

func (c *JSONCache[T]) warn(msg, id string, err error) {
	if c.Log != nil {
		c.Log.Warnw(msg, "key", c.key(id), "error", err)
	}
}
