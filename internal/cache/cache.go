package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"quill/internal/observability"

	"github.com/redis/go-redis/v9"
)

// Cache is a prefix-keyed string cache over Redis. Every method is safe to
// call with a nil client; failures are logged and reported as misses so callers
// fall back to the store.
type Cache struct {
	rdb *redis.Client
}

// New returns a Cache backed by rdb. rdb may be nil.
func New(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

// Enabled reports whether a Redis client is configured.
func (c *Cache) Enabled() bool {
	return c != nil && c.rdb != nil
}

// Key joins prefix and key as "prefix:key". An empty key addresses the prefix itself.
func Key(prefix, key string) string {
	if key == "" {
		return prefix
	}
	return prefix + ":" + key
}

// Get returns the raw payload under prefix:key and whether it was found.
func (c *Cache) Get(ctx context.Context, prefix, key string) (string, bool) {
	if !c.Enabled() {
		return "", false
	}
	val, err := c.rdb.Get(ctx, Key(prefix, key)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logFailure(ctx, "get", prefix, err)
		}
		observability.RecordCacheLookup(prefix, false)
		return "", false
	}
	observability.RecordCacheLookup(prefix, true)
	return val, true
}

// Set stores value without expiry.
func (c *Cache) Set(ctx context.Context, prefix, key, value string) {
	c.SetWithExpiry(ctx, prefix, key, value, 0)
}

// SetWithExpiry stores value with the given TTL. A zero TTL means no expiry.
func (c *Cache) SetWithExpiry(ctx context.Context, prefix, key, value string, ttl time.Duration) {
	if !c.Enabled() {
		return
	}
	if err := c.rdb.Set(ctx, Key(prefix, key), value, ttl).Err(); err != nil {
		logFailure(ctx, "set", prefix, err)
	}
}

// Del removes prefix:key.
func (c *Cache) Del(ctx context.Context, prefix, key string) {
	if !c.Enabled() {
		return
	}
	if err := c.rdb.Del(ctx, Key(prefix, key)).Err(); err != nil {
		logFailure(ctx, "del", prefix, err)
	}
}

// DelPrefix removes the prefix entry and every key under "prefix:".
func (c *Cache) DelPrefix(ctx context.Context, prefix string) {
	if !c.Enabled() {
		return
	}
	keys := []string{prefix}
	iter := c.rdb.Scan(ctx, 0, prefix+":*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		logFailure(ctx, "scan", prefix, err)
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		logFailure(ctx, "del", prefix, err)
	}
}

// FlushAll clears every database on the server.
func (c *Cache) FlushAll(ctx context.Context) {
	if !c.Enabled() {
		return
	}
	if err := c.rdb.FlushAll(ctx).Err(); err != nil {
		logFailure(ctx, "flushall", "", err)
	}
}

// FlushDB clears the selected database.
func (c *Cache) FlushDB(ctx context.Context) {
	if !c.Enabled() {
		return
	}
	if err := c.rdb.FlushDB(ctx).Err(); err != nil {
		logFailure(ctx, "flushdb", "", err)
	}
}

// Ping checks connectivity. It returns nil when no client is configured.
func (c *Cache) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	return c.rdb.Ping(ctx).Err()
}

// Aside reads prefix:key into dest. On a miss it calls fetch, which must
// populate dest, then stores dest as JSON with ttl. Cache errors never fail the call.
func Aside(ctx context.Context, c *Cache, prefix, key string, ttl time.Duration, dest any, fetch func() error) error {
	if raw, ok := c.Get(ctx, prefix, key); ok {
		if err := json.Unmarshal([]byte(raw), dest); err == nil {
			return nil
		}
		// Corrupt entries are dropped and refetched.
		c.Del(ctx, prefix, key)
	}

	if err := fetch(); err != nil {
		return err
	}

	if c.Enabled() {
		b, err := json.Marshal(dest)
		if err != nil {
			logFailure(ctx, "marshal", prefix, err)
			return nil
		}
		c.SetWithExpiry(ctx, prefix, key, string(b), ttl)
	}
	return nil
}

func logFailure(ctx context.Context, op, prefix string, err error) {
	observability.GlobalLogger.WarnContext(ctx, "cache operation failed",
		slog.String("operation", op),
		slog.String("prefix", prefix),
		slog.String("error", err.Error()),
	)
}
