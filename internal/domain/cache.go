package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching operations.
// Supports two-phase caching: local LRU (Community) + Redis (Pro).
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, key string) error

	// GetAnalysis retrieves a cached analysis result for a feedback record.
	GetAnalysis(ctx context.Context, feedbackID string) (*AnalysisCache, error)

	// SetAnalysis caches an analysis result so re-runs of the pipeline do
	// not re-consult the external judge.
	SetAnalysis(ctx context.Context, feedbackID string, data *AnalysisCache, ttl time.Duration) error

	// IncrementCounter atomically increments a windowed counter and returns
	// the new value. Used for entity complaint velocity.
	IncrementCounter(ctx context.Context, key string, window time.Duration) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// AnalysisCache holds a cached classification plus resolved violations.
type AnalysisCache struct {
	Classification Classification `json:"classification"`
	Violations     []Violation    `json:"violations"`
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU cache settings (Community tier)
	LocalMaxSize int
	LocalTTL     time.Duration

	// Redis settings (Pro tier)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Two-phase settings
	EnableTwoPhase bool // If true, check local first, then Redis
}
