package domain

import (
	"context"
	"time"
)

// Cache defines the interface for the memoization layer that sits
// outside the pure scoring core. Supports two-phase caching: local LRU
// (Community) + Redis (Pro). All methods require tenantID for strict
// multi-tenancy isolation.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, tenantID string, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, tenantID string, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, tenantID string, key string) error

	// GetSnapshot retrieves a cached score snapshot for a customer.
	GetSnapshot(ctx context.Context, tenantID string, customerID string) (*ScoreSnapshot, error)

	// SetSnapshot memoizes a score snapshot for a customer.
	SetSnapshot(ctx context.Context, tenantID string, customerID string, snap *ScoreSnapshot, ttl time.Duration) error

	// IncrementCounter atomically increments a counter and returns new value.
	// Used for dispatch frequency caps (e.g., sends per customer per day).
	IncrementCounter(ctx context.Context, tenantID string, key string, window time.Duration) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string `json:"type" yaml:"type"`

	// Local LRU cache settings (Community tier)
	LocalMaxSize int           `json:"localMaxSize" yaml:"localMaxSize"`
	LocalTTL     time.Duration `json:"localTtl" yaml:"localTtl"`

	// Redis settings (Pro tier)
	RedisAddr     string `json:"redisAddr" yaml:"redisAddr"`
	RedisPassword string `json:"redisPassword" yaml:"redisPassword"`
	RedisDB       int    `json:"redisDb" yaml:"redisDb"`

	// Two-phase settings
	EnableTwoPhase bool `json:"enableTwoPhase" yaml:"enableTwoPhase"` // If true, check local first, then Redis
}
