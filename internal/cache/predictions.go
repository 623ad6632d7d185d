// Package cache provides an optional two-tier prediction cache: an
// in-process LRU in front of Redis. Predictions are deterministic for
// a given bundle, so identical payloads can be answered without
// re-running inference.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/drug-risk-ml-server/internal/domain"
)

// CachedPrediction is the stored envelope. ExpiresAt duplicates the
// Redis TTL so a stale memory-tier hit can be detected locally.
type CachedPrediction struct {
	Result    json.RawMessage `json:"result"`
	CachedAt  time.Time       `json:"cached_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// PredictionCache is the two-tier cache. The Redis tier is optional;
// with a nil client the cache degrades to memory-only.
type PredictionCache struct {
	memory     *lru.Cache[string, *CachedPrediction]
	redis      *redis.Client
	defaultTTL time.Duration
	log        *logrus.Logger
}

// New creates a prediction cache from configuration. Redis connection
// failure is an error; use NewMemoryOnly when Redis is not deployed.
func New(cfg *domain.CacheConfig, logger *logrus.Logger) (*PredictionCache, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.PoolTimeout = cfg.PoolTimeout
	opts.MaxRetries = cfg.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	cache, err := newWithClient(client, cfg.MemorySize, cfg.DefaultTTL, logger)
	if err != nil {
		client.Close()
		return nil, err
	}
	return cache, nil
}

// NewMemoryOnly creates a cache backed only by the in-process LRU.
func NewMemoryOnly(memorySize int, ttl time.Duration, logger *logrus.Logger) (*PredictionCache, error) {
	return newWithClient(nil, memorySize, ttl, logger)
}

func newWithClient(client *redis.Client, memorySize int, ttl time.Duration, logger *logrus.Logger) (*PredictionCache, error) {
	if memorySize <= 0 {
		memorySize = 1000
	}
	if ttl <= 0 {
		ttl = time.Hour
	}

	memory, err := lru.New[string, *CachedPrediction](memorySize)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}

	return &PredictionCache{
		memory:     memory,
		redis:      client,
		defaultTTL: ttl,
		log:        logger,
	}, nil
}

// Key derives the cache key from the materialized feature row, the
// drug name, and the inference mode. Two requests that scale to the
// same row are the same prediction.
func Key(row []float64, drugName string, mode domain.ModelMode) string {
	payload, _ := json.Marshal(struct {
		Row  []float64        `json:"row"`
		Drug string           `json:"drug"`
		Mode domain.ModelMode `json:"mode"`
	}{row, drugName, mode})
	return fmt.Sprintf("prediction:%x", sha256.Sum256(payload))
}

// Get returns the cached raw result for key, reporting whether it was
// found. Corrupted or expired entries are evicted and reported as
// misses; Redis errors degrade to a miss rather than failing the
// request.
func (c *PredictionCache) Get(ctx context.Context, key string) (json.RawMessage, bool) {
	if cached, ok := c.memory.Get(key); ok {
		if time.Now().Before(cached.ExpiresAt) {
			return cached.Result, true
		}
		c.memory.Remove(key)
	}

	if c.redis == nil {
		return nil, false
	}

	val, err := c.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.log.WithError(err).Warn("Prediction cache read failed")
		return nil, false
	}

	var cached CachedPrediction
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		// Remove corrupted cache entry
		c.redis.Del(ctx, key)
		return nil, false
	}
	if time.Now().After(cached.ExpiresAt) {
		c.redis.Del(ctx, key)
		return nil, false
	}

	// Promote to the memory tier.
	c.memory.Add(key, &cached)
	return cached.Result, true
}

// Set stores a raw result under key in both tiers. Failures are
// logged and swallowed; caching is never allowed to fail a request.
func (c *PredictionCache) Set(ctx context.Context, key string, result json.RawMessage) {
	cached := &CachedPrediction{
		Result:    result,
		CachedAt:  time.Now(),
		ExpiresAt: time.Now().Add(c.defaultTTL),
	}
	c.memory.Add(key, cached)

	if c.redis == nil {
		return
	}

	data, err := json.Marshal(cached)
	if err != nil {
		c.log.WithError(err).Warn("Failed to marshal cached prediction")
		return
	}
	if err := c.redis.Set(ctx, key, data, c.defaultTTL).Err(); err != nil {
		c.log.WithError(err).Warn("Prediction cache write failed")
	}
}

// Purge drops every memory-tier entry. Called when a new bundle is
// loaded, since cached predictions belong to the old model.
func (c *PredictionCache) Purge() {
	c.memory.Purge()
}

// Close releases the Redis connection.
func (c *PredictionCache) Close() error {
	if c.redis != nil {
		return c.redis.Close()
	}
	return nil
}
