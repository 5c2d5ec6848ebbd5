package session

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store errors.
var (
	ErrNotFound         = errors.New("session not found")
	ErrAlreadyExists    = errors.New("session already exists")
	ErrVersionConflict  = errors.New("session version conflict")
	ErrInvalidConfig    = errors.New("invalid store configuration")
	ErrInvalidStoreType = errors.New("invalid store type")
)

// Store is the session storage interface.
type Store interface {
	// Create stores a new session with Version set to 1.
	Create(ctx context.Context, data *Data) error

	// Get retrieves a session by id. Returns nil, nil when the session
	// does not exist or has expired.
	Get(ctx context.Context, id string) (*Data, error)

	// Update persists an existing session with optimistic locking: the
	// stored version must match data.Version, and the stored copy gets
	// Version+1. Returns ErrVersionConflict on mismatch.
	Update(ctx context.Context, data *Data) error

	// Delete removes a session. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error

	// Close releases store resources.
	Close() error
}

// StoreType selects a storage driver.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeRedis  StoreType = "redis"
)

// StoreOption configures a store created by NewStore.
type StoreOption func(*storeConfig)

type storeConfig struct {
	redisClient   *redis.Client
	ttl           time.Duration
	sweepInterval time.Duration
}

// WithRedisClient sets the client used by the redis driver.
func WithRedisClient(client *redis.Client) StoreOption {
	return func(c *storeConfig) { c.redisClient = client }
}

// WithTTL sets the session inactivity timeout.
func WithTTL(ttl time.Duration) StoreOption {
	return func(c *storeConfig) { c.ttl = ttl }
}

// WithSweepInterval sets how often the memory driver evicts expired
// sessions.
func WithSweepInterval(d time.Duration) StoreOption {
	return func(c *storeConfig) { c.sweepInterval = d }
}

// NewStore creates a Store for the given driver type. The redis driver
// requires WithRedisClient.
func NewStore(storeType StoreType, opts ...StoreOption) (Store, error) {
	cfg := &storeConfig{
		ttl:           30 * time.Minute,
		sweepInterval: time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	switch storeType {
	case StoreTypeMemory:
		return newMemoryStore(cfg.ttl, cfg.sweepInterval), nil
	case StoreTypeRedis:
		if cfg.redisClient == nil {
			return nil, ErrInvalidConfig
		}
		return newRedisStore(cfg.redisClient, cfg.ttl), nil
	default:
		return nil, ErrInvalidStoreType
	}
}
