package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching operations.
// Supports two-phase caching: local LRU + Redis for multi-node setups.
// All methods require tenantID for strict multi-tenancy isolation.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, tenantID string, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, tenantID string, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, tenantID string, key string) error

	// GetSnapshot retrieves a cached reference-data snapshot.
	GetSnapshot(ctx context.Context, tenantID string) (*RefSnapshot, error)

	// SetSnapshot caches a reference-data snapshot so the async worker
	// does not reload fleet data from the repository on every message.
	SetSnapshot(ctx context.Context, tenantID string, snap *RefSnapshot, ttl time.Duration) error

	// IncrementCounter atomically increments a counter and returns the
	// new value. Used for per-tenant request rate limiting.
	IncrementCounter(ctx context.Context, tenantID string, key string, window time.Duration) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// SnapshotCacheKey is the per-tenant cache key under which the
// reference snapshot is stored. Writers of reference data delete this
// key so the async worker picks up the change.
const SnapshotCacheKey = "refsnapshot"

// RefSnapshot is a point-in-time copy of the reference collections the
// detection engine evaluates against.
type RefSnapshot struct {
	Vehicles []Vehicle `json:"vehicles"`
	Projects []Project `json:"projects"`
	Workers  []Worker  `json:"workers"`
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string `koanf:"type"`

	// Local LRU cache settings
	LocalMaxSize int           `koanf:"local_max_size"`
	LocalTTL     time.Duration `koanf:"local_ttl"`

	// Redis settings
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`

	// Two-phase settings
	EnableTwoPhase bool `koanf:"enable_two_phase"` // If true, check local first, then Redis
}
