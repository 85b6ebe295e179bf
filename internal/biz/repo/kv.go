package repo

import "context"

// Area namespaces the key-value store
type Area string

const (
	// AreaSync holds user configuration
	AreaSync Area = "sync"
	// AreaLocal holds runtime state
	AreaLocal Area = "local"
)

// KVRepo is the key-value persistence interface
// Values are opaque JSON documents; last writer wins.
type KVRepo interface {
	// Get returns the raw value and whether the key exists
	Get(ctx context.Context, area Area, key string) ([]byte, bool, error)

	// Set creates or overwrites a key
	Set(ctx context.Context, area Area, key string, value []byte) error

	// Remove deletes keys; missing keys are ignored
	Remove(ctx context.Context, area Area, keys ...string) error

	// All returns every key in an area
	All(ctx context.Context, area Area) (map[string][]byte, error)

	// Close releases the underlying storage
	Close() error
}
