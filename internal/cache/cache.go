// Package cache is a Redis-backed cache of extracted metadata values,
// checked by the Extraction Executor (C9) before calling the LLM so that
// re-running extraction for an unchanged document within the TTL window
// skips the round-trip (spec §10/A9). Never load-bearing: a cache miss or a
// disabled cache simply means the executor falls through to the LLM.
package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"docpipeline/internal/config"
)

// ExtractedValueCache caches one (document, configuration, prompt version)
// extraction result. Keying on the configuration's prompt version rather
// than the group it was run under means the cache invalidates itself the
// moment a configuration's extraction_prompt changes, and is shared across
// every group the configuration belongs to.
type ExtractedValueCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// New builds a Redis-backed cache when cfg.Enabled; returns nil (a valid,
// inert receiver — every method is a no-op on it) when disabled.
func New(cfg config.CacheConfig) (*ExtractedValueCache, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &ExtractedValueCache{client: client, ttl: cfg.TTL}, nil
}

func key(documentID, configID string, promptVersion int) string {
	return "extracted:" + documentID + ":" + configID + ":" + strconv.Itoa(promptVersion)
}

// Get returns a previously-cached extracted value, or ("", false) on a miss
// or a nil/disabled cache.
func (c *ExtractedValueCache) Get(ctx context.Context, documentID, configID string, promptVersion int) (string, bool) {
	if c == nil {
		return "", false
	}
	v, err := c.client.Get(ctx, key(documentID, configID, promptVersion)).Result()
	if err != nil {
		return "", false
	}
	return v, true
}

// Set stores an extracted value with the cache's configured TTL. Errors are
// swallowed — a failed cache write never fails the extraction it followed.
func (c *ExtractedValueCache) Set(ctx context.Context, documentID, configID string, promptVersion int, value string) {
	if c == nil {
		return
	}
	_ = c.client.Set(ctx, key(documentID, configID, promptVersion), value, c.ttl).Err()
}

// Close releases the underlying Redis connection.
func (c *ExtractedValueCache) Close() {
	if c == nil {
		return
	}
	_ = c.client.Close()
}
