// Package kvs provides the key-value storage contract backing session
// persistence, with Memory, LevelDB, and Redis implementations.
package kvs

import (
	"context"
	"errors"
	"time"
)

// Store is a key-value store interface that supports TTL and prefix scans.
// All implementations must be safe for concurrent use.
type Store interface {
	// Get retrieves a value by key.
	// Returns ErrNotFound if the key does not exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with optional TTL. A ttl of 0 means no expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists checks if a key exists and has not expired.
	Exists(ctx context.Context, key string) (bool, error)

	// List returns all keys matching a prefix. Empty prefix returns all
	// keys. Key order is not guaranteed.
	List(ctx context.Context, prefix string) ([]string, error)

	// Count returns the number of keys matching a prefix.
	Count(ctx context.Context, prefix string) (int, error)

	// Close closes the store and releases resources.
	// After Close, all operations return ErrClosed.
	Close() error
}

// Common errors
var (
	// ErrNotFound is returned when a key is not found or has expired.
	ErrNotFound = errors.New("kvs: key not found")

	// ErrClosed is returned when an operation is attempted on a closed store.
	ErrClosed = errors.New("kvs: store is closed")
)

// Config selects and configures a KVS backend.
type Config struct {
	// Type specifies the store type: "memory", "leveldb", or "redis".
	// Empty defaults to "memory".
	Type string `yaml:"type"`

	// Memory-specific config
	Memory MemoryConfig `yaml:"memory"`

	// LevelDB-specific config
	LevelDB LevelDBConfig `yaml:"leveldb"`

	// Redis-specific config
	Redis RedisConfig `yaml:"redis"`
}

// MemoryConfig configures the in-memory store.
type MemoryConfig struct {
	// CleanupInterval is how often expired keys are swept.
	// Default: 5 minutes.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// LevelDBConfig configures the LevelDB store.
type LevelDBConfig struct {
	// Path is the directory for LevelDB storage. If empty, a directory
	// under the OS cache dir is used.
	Path string `yaml:"path"`

	// CleanupInterval is how often expired keys are swept.
	// Default: 5 minutes.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// RedisConfig configures the Redis store.
type RedisConfig struct {
	// Addr is the Redis server address (host:port)
	Addr string `yaml:"addr"`

	// Password is the Redis password (optional)
	Password string `yaml:"password"`

	// DB is the Redis database number
	DB int `yaml:"db"`

	// PoolSize is the maximum number of socket connections
	// (0 = client default)
	PoolSize int `yaml:"pool_size"`
}

// New creates a KVS store from the provided config.
func New(cfg Config) (Store, error) {
	switch cfg.Type {
	case "memory", "":
		return NewMemoryStore(cfg.Memory), nil
	case "leveldb":
		return NewLevelDBStore(cfg.LevelDB)
	case "redis":
		return NewRedisStore(cfg.Redis)
	default:
		return nil, errors.New("kvs: unsupported store type: " + cfg.Type)
	}
}
