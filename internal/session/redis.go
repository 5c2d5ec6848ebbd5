package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "chatorder:session:"

// redisStore persists sessions in Redis with a TTL and optimistic locking
// via WATCH/MULTI/EXEC. Reads and writes refresh the TTL, so an active
// conversation never expires mid-flight. A session with PaymentPending set
// is stored without expiry; the write that clears the flag restores the
// TTL, so eviction never races an in-flight reconciliation.
type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// sessionExpiration suspends the TTL while a payment attempt is pending.
func sessionExpiration(data *Data, ttl time.Duration) time.Duration {
	if data.PaymentPending {
		return 0
	}
	return ttl
}

func newRedisStore(client *redis.Client, ttl time.Duration) *redisStore {
	return &redisStore{client: client, ttl: ttl}
}

// Create implements Store.
func (s *redisStore) Create(ctx context.Context, data *Data) error {
	key := s.key(data.ID)

	now := time.Now()
	data.StartedAt = now
	data.LastUpdated = now
	data.Version = 1

	val, err := json.Marshal(data)
	if err != nil {
		return err
	}
	ok, err := s.client.SetNX(ctx, key, val, sessionExpiration(data, s.ttl)).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrAlreadyExists
	}
	return nil
}

// Get implements Store. Returns nil, nil when the key is missing.
func (s *redisStore) Get(ctx context.Context, id string) (*Data, error) {
	key := s.key(id)
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var data Data
	if err := json.Unmarshal([]byte(val), &data); err != nil {
		return nil, err
	}

	// Refresh TTL on read; a failure here is not fatal. A pending-payment
	// session has no expiry, and a read must not reintroduce one.
	if !data.PaymentPending {
		_ = s.client.Expire(ctx, key, s.ttl).Err()
	}

	return &data, nil
}

// Update implements Store.
func (s *redisStore) Update(ctx context.Context, data *Data) error {
	key := s.key(data.ID)

	return s.client.Watch(ctx, func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, key).Result()
		if err == redis.Nil {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var stored Data
		if err := json.Unmarshal([]byte(val), &stored); err != nil {
			return err
		}
		if stored.Version != data.Version {
			return ErrVersionConflict
		}

		data.Version++
		data.LastUpdated = time.Now()

		newVal, err := json.Marshal(data)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, newVal, sessionExpiration(data, s.ttl))
			return nil
		})
		return err
	}, key)
}

// Delete implements Store.
func (s *redisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.key(id)).Err()
}

// Close implements Store.
func (s *redisStore) Close() error {
	return s.client.Close()
}

func (s *redisStore) key(id string) string {
	return sessionKeyPrefix + id
}
