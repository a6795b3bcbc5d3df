package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching operations.
// Supports two-phase caching: local LRU + Redis.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, key string) error

	// GetScoringConfig retrieves the cached scoring configuration.
	GetScoringConfig(ctx context.Context) (*ScoringConfig, error)

	// SetScoringConfig caches the scoring configuration for read-through.
	SetScoringConfig(ctx context.Context, cfg *ScoringConfig, ttl time.Duration) error

	// IncrementCounter atomically increments a counter and returns the new
	// value. Used for per-customer velocity windows.
	IncrementCounter(ctx context.Context, key string, window time.Duration) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU cache settings
	LocalMaxSize int
	LocalTTL     time.Duration

	// Redis settings
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Two-phase settings
	EnableTwoPhase bool // If true, check local first, then Redis
}

// ScoringConfigCacheKey is the read-through key for the active config.
const ScoringConfigCacheKey = "scoring-config"
