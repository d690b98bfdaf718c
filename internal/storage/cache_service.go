package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/portfolio-engine/internal/logging"
	"github.com/portfolio-engine/internal/metrics"
	"golang.org/x/sync/singleflight"
)

// CacheKeyType represents different classes of cache keys
type CacheKeyType string

const (
	// CacheKeyPortfolio is for per-owner portfolio analyses
	CacheKeyPortfolio CacheKeyType = "portfolio"
	// CacheKeyOpportunities is for filtered opportunity catalogs
	CacheKeyOpportunities CacheKeyType = "opportunities"
	// CacheKeyMarket is for market data snapshots
	CacheKeyMarket CacheKeyType = "market"
)

// ComputeFunc produces the value to cache on a miss
type ComputeFunc func(ctx context.Context) (interface{}, error)

// CacheService stores JSON snapshots of computed results under a fixed TTL.
// Readers always decode a fresh copy, so cached values are never shared or mutated.
type CacheService struct {
	store   Store
	ttl     time.Duration
	class   string
	metrics *metrics.Metrics
	group   singleflight.Group
}

// NewCacheService creates a cache service for one cache class
func NewCacheService(store Store, class string, ttl time.Duration, m *metrics.Metrics) *CacheService {
	return &CacheService{
		store:   store,
		ttl:     ttl,
		class:   class,
		metrics: m,
	}
}

// GenerateCacheKey generates a cache key for a given type and parameters
// Format: <type>:<param1>:<param2>:...
func GenerateCacheKey(keyType CacheKeyType, params ...string) string {
	parts := make([]string, 0, len(params)+1)
	parts = append(parts, string(keyType))
	for _, p := range params {
		parts = append(parts, strings.ToLower(p))
	}
	return strings.Join(parts, ":")
}

// GenerateSetKey builds a key whose identity does not depend on the order of ids.
// Format: <type>:<sorted,ids>:<params...>
func GenerateSetKey(keyType CacheKeyType, ids []string, params ...string) string {
	sorted := make([]string, len(ids))
	for i, id := range ids {
		sorted[i] = strings.ToLower(id)
	}
	sort.Strings(sorted)
	return GenerateCacheKey(keyType, append([]string{strings.Join(sorted, ",")}, params...)...)
}

// Get retrieves a value from cache and deserializes it into dest
func (c *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, found, err := c.store.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to get from cache: %w", err)
	}
	if !found {
		c.metrics.CacheMiss(c.class)
		return false, nil
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached value: %w", err)
	}

	c.metrics.CacheHit(c.class)
	return true, nil
}

// Set stores a value in cache with the configured TTL
func (c *CacheService) Set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return c.store.Set(ctx, key, data, c.ttl)
}

// GetOrCompute returns the cached value for key, computing and storing it on a miss.
// Concurrent misses for the same key share one computation. Errors are never cached.
// The returned bool reports whether the value came from cache.
func (c *CacheService) GetOrCompute(ctx context.Context, key string, dest interface{}, compute ComputeFunc) (bool, error) {
	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"component": "cache",
		"class":     c.class,
		"key":       key,
	})

	found, err := c.Get(ctx, key, dest)
	if err != nil {
		// A broken cache degrades to recomputation
		logger.WithError(err).Warn("Cache read failed, recomputing")
	}
	if found {
		return true, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		value, err := compute(ctx)
		if err != nil {
			return nil, err
		}

		data, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal value: %w", err)
		}

		if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
			logger.WithError(err).Warn("Cache write failed")
		}
		return data, nil
	})
	if err != nil {
		return false, err
	}

	if err := json.Unmarshal(v.([]byte), dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal computed value: %w", err)
	}
	return false, nil
}

// Invalidate removes one or more keys from cache
func (c *CacheService) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.store.Del(ctx, keys...)
}

// InvalidatePrefix removes all keys starting with prefix
func (c *CacheService) InvalidatePrefix(ctx context.Context, prefix string) error {
	return c.store.DelPrefix(ctx, prefix)
}

// GetTTL returns the configured TTL for this cache service
func (c *CacheService) GetTTL() time.Duration {
	return c.ttl
}
