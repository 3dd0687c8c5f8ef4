// Package cache stores analysis responses in Redis, keyed by a digest of the
// request that produced them. Every operation is best effort: a cache error
// is logged and treated as a miss.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultTTL is used when no TTL is configured
	DefaultTTL = 5 * time.Minute

	// DefaultPrefix namespaces the keys written by the service
	DefaultPrefix = "riskengine"

	opTimeout = 500 * time.Millisecond
)

// ErrNotInitialized is returned by write operations on a nil cache
var ErrNotInitialized = errors.New("cache not initialized")

// ResultCache provides Redis-based caching of computed results
type ResultCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// Entry is the stored envelope around a cached result
type Entry struct {
	Operation string          `json:"operation"`
	CachedAt  time.Time       `json:"cached_at"`
	Payload   json.RawMessage `json:"payload"`
}

// NewResultCache creates a cache. If client is nil, returns nil (optional
// Redis support); all methods are safe on a nil cache.
func NewResultCache(client *redis.Client, ttl time.Duration, prefix string) *ResultCache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}

	return &ResultCache{
		client: client,
		ttl:    ttl,
		prefix: prefix,
	}
}

// Key derives the cache key of an operation from its request. Requests that
// encode to the same JSON share a key.
func (c *ResultCache) Key(operation string, request interface{}) (string, error) {
	data, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to encode request for cache key: %w", err)
	}
	sum := sha256.Sum256(data)

	prefix := DefaultPrefix
	if c != nil {
		prefix = c.prefix
	}
	return fmt.Sprintf("%s:result:%s:%s", prefix, operation, hex.EncodeToString(sum[:])), nil
}

// Get decodes the cached result at key into dest. Returns false on a miss
// or on any error.
func (c *ResultCache) Get(ctx context.Context, key string, dest interface{}) bool {
	if c == nil || c.client == nil {
		return false
	}

	cacheCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	cached, err := c.client.Get(cacheCtx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Debug().
				Err(err).
				Str("key", key).
				Msg("Redis get error - treating as cache miss")
		}
		return false
	}

	var entry Entry
	if err := json.Unmarshal(cached, &entry); err != nil {
		log.Warn().
			Err(err).
			Str("key", key).
			Msg("Failed to unmarshal cache entry")
		return false
	}

	if err := json.Unmarshal(entry.Payload, dest); err != nil {
		log.Warn().
			Err(err).
			Str("key", key).
			Msg("Failed to decode cached result")
		return false
	}

	log.Debug().
		Str("operation", entry.Operation).
		Time("cached_at", entry.CachedAt).
		Msg("Cache hit")

	return true
}

// Set stores a result under key with the configured TTL
func (c *ResultCache) Set(ctx context.Context, key, operation string, value interface{}) error {
	if c == nil || c.client == nil {
		return ErrNotInitialized
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	data, err := json.Marshal(Entry{
		Operation: operation,
		CachedAt:  time.Now().UTC(),
		Payload:   payload,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	cacheCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := c.client.Set(cacheCtx, key, data, c.ttl).Err(); err != nil {
		log.Warn().
			Err(err).
			Str("key", key).
			Msg("Failed to cache result")
		return err
	}

	log.Debug().
		Str("operation", operation).
		Dur("ttl", c.ttl).
		Msg("Cached result")

	return nil
}

// Health checks if the Redis connection is healthy
func (c *ResultCache) Health(ctx context.Context) error {
	if c == nil || c.client == nil {
		return ErrNotInitialized
	}

	cacheCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := c.client.Ping(cacheCtx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}

	return nil
}
