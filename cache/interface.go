package cache

import "context"

// Store defines the interface for byte cache operations.
type Store interface {
	// Get retrieves a value by key.
	// Returns nil if the key is not found or expired (not an error).
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes a key.
	Delete(ctx context.Context, key string) error

	// Close closes the store and releases any resources.
	Close() error
}
