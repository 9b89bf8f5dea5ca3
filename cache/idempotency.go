package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyStore records idempotency keys in Redis so retried requests can
// be detected instead of re-running their side effects.
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{client: client, ttl: ttl}
}

func (s *IdempotencyStore) key(scope, key string) string {
	return "idem:" + scope + ":" + key
}

// Get returns the value stored for the key, or "" when unseen.
func (s *IdempotencyStore) Get(ctx context.Context, scope, key string) (string, error) {
	val, err := s.client.Get(ctx, s.key(scope, key)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

// SetOnce stores the value only if the key has not been seen before. Returns
// true when this call claimed the key.
func (s *IdempotencyStore) SetOnce(ctx context.Context, scope, key, value string) (bool, error) {
	return s.client.SetNX(ctx, s.key(scope, key), value, s.ttl).Result()
}

// Release removes a claimed key, used when the guarded operation is rolled back.
func (s *IdempotencyStore) Release(ctx context.Context, scope, key string) error {
	return s.client.Del(ctx, s.key(scope, key)).Err()
}
