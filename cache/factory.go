package cache

import (
	"fmt"
	"time"

	"github.com/creastat/retrieval"
)

// StoreType represents the type of cache store.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeRedis  StoreType = "redis"
)

const (
	// defaultTTL applies when no TTL option is given.
	defaultTTL = 24 * time.Hour
	// defaultKeyPrefix namespaces cache keys in shared Redis instances.
	defaultKeyPrefix = "retrieval:"
)

// NewStore creates a new Store based on the given type.
// For Redis, requires WithRedisClient option.
func NewStore(storeType StoreType, opts ...StoreOption) (Store, error) {
	config := &storeConfig{
		ttl:       defaultTTL,
		keyPrefix: defaultKeyPrefix,
	}
	for _, opt := range opts {
		opt(config)
	}
	if config.ttl <= 0 {
		config.ttl = defaultTTL
	}

	switch storeType {
	case StoreTypeMemory:
		return NewMemoryStore(config.ttl), nil

	case StoreTypeRedis:
		if config.redisClient == nil {
			return nil, fmt.Errorf("redis cache requires a client: %w", retrieval.ErrInvalidConfig)
		}
		return NewRedisStore(config.redisClient, config.ttl, config.keyPrefix), nil

	default:
		return nil, fmt.Errorf("cache store %q: %w", storeType, retrieval.ErrInvalidStoreType)
	}
}
