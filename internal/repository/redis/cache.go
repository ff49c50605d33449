// Package redis provides the shared Redis client and retrieval-result
// caching for the generation pipeline.
package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testweave/testweave/internal/config"
	"github.com/testweave/testweave/internal/domain"
)

// Cache provides Redis caching functionality
type Cache struct {
	client *redis.Client
}

// PrefixRetrieval namespaces cached retrieval results.
const PrefixRetrieval = "retrieval:"

// Default TTLs
const (
	DefaultTTL   = 15 * time.Minute
	RetrievalTTL = 10 * time.Minute
)

// New creates a new Redis cache client
func New(cfg config.RedisConfig) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &Cache{client: client}, nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

// Health checks Redis connectivity
func (c *Cache) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Client returns the underlying Redis client for advanced operations
func (c *Cache) Client() *redis.Client {
	return c.client
}

// Retrieval caching

// RetrievalKey derives the cache key for a query against a collection.
func RetrievalKey(collection, query string, topK int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%s", collection, topK, query)))
	return PrefixRetrieval + hex.EncodeToString(sum[:16])
}

// GetRetrieval retrieves cached ranked chunks for a query. A cache miss
// returns nil chunks and no error.
func (c *Cache) GetRetrieval(ctx context.Context, key string) ([]domain.Chunk, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var chunks []domain.Chunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return nil, err
	}

	return chunks, nil
}

// SetRetrieval caches ranked chunks for a query
func (c *Cache) SetRetrieval(ctx context.Context, key string, chunks []domain.Chunk) error {
	data, err := json.Marshal(chunks)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, key, data, RetrievalTTL).Err()
}

// InvalidateRetrievals drops all cached retrieval results. Called after
// re-ingesting the corpus so stale chunks never serve new queries.
func (c *Cache) InvalidateRetrievals(ctx context.Context) error {
	return c.DeletePattern(ctx, PrefixRetrieval+"*")
}

// Generic caching methods

// Get retrieves a value from cache
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// Set stores a value in cache
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

// Delete removes a value from cache
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// DeletePattern removes all keys matching a pattern
func (c *Cache) DeletePattern(ctx context.Context, pattern string) error {
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}

	if len(keys) > 0 {
		return c.client.Del(ctx, keys...).Err()
	}

	return nil
}
