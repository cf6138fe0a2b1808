package cache

import (
	"context"
	"sync"
	"time"

	"kitchenline/internal/domain/service"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyPrefix = "idem:"
	defaultTTL           = 24 * time.Hour
)

// completeScript stores the result only while the reservation still exists,
// keeping its expiry.
var completeScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'KEEPTTL')
return 1
`)

type redisIdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisIdempotencyStore stores reservations in Redis with the given expiry.
func NewRedisIdempotencyStore(client *redis.Client, ttl time.Duration) service.IdempotencyStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}

	return &redisIdempotencyStore{client: client, ttl: ttl}
}

func (s *redisIdempotencyStore) Reserve(ctx context.Context, key string) (string, bool, error) {
	k := idempotencyKeyPrefix + key

	// A reservation can expire between SETNX and GET; one retry covers it.
	for range 2 {
		ok, err := s.client.SetNX(ctx, k, "", s.ttl).Result()
		if err != nil {
			return "", false, errors.Wrap(err, "failed to reserve idempotency key")
		}
		if ok {
			return "", true, nil
		}

		existing, err := s.client.Get(ctx, k).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return "", false, errors.Wrap(err, "failed to read idempotency key")
		}

		return existing, false, nil
	}

	return "", false, errors.New("idempotency key kept expiring")
}

func (s *redisIdempotencyStore) Complete(ctx context.Context, key, value string) error {
	if err := completeScript.Run(ctx, s.client, []string{idempotencyKeyPrefix + key}, value).Err(); err != nil {
		return errors.Wrap(err, "failed to complete idempotency key")
	}

	return nil
}

func (s *redisIdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, idempotencyKeyPrefix+key).Err(); err != nil {
		return errors.Wrap(err, "failed to release idempotency key")
	}

	return nil
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

type memoryIdempotencyStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

// NewMemoryIdempotencyStore keeps reservations in process memory. Expired keys
// are purged lazily on Reserve.
func NewMemoryIdempotencyStore(ttl time.Duration) service.IdempotencyStore {
	return newMemoryIdempotencyStore(ttl)
}

func newMemoryIdempotencyStore(ttl time.Duration) *memoryIdempotencyStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}

	return &memoryIdempotencyStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

func (s *memoryIdempotencyStore) Reserve(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
		}
	}

	if e, ok := s.entries[key]; ok {
		return e.value, false, nil
	}
	s.entries[key] = memoryEntry{expiresAt: now.Add(s.ttl)}

	return "", true, nil
}

func (s *memoryIdempotencyStore) Complete(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok {
		e.value = value
		s.entries[key] = e
	}

	return nil
}

func (s *memoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)

	return nil
}
