package redisrepo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	idemLock      = "LOCK"
	idemResPrefix = "RES:"
)

// IdemState is what Begin found under an idempotency key.
type IdemState int

const (
	// IdemAcquired means the caller owns the key and must Save or Release it.
	IdemAcquired IdemState = iota
	// IdemInFlight means another request with the same key is running.
	IdemInFlight
	// IdemDone means a stored response is available.
	IdemDone
)

// IdempotencyStore remembers responses of requests carrying an
// Idempotency-Key. A key holds either LOCK while the first request runs or
// RES:<payload> once it finished.
type IdempotencyStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewIdempotencyStore(rdb *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{rdb: rdb, ttl: ttl}
}

// Begin claims key for lockTTL, or reports who holds it. For IdemDone the
// stored payload is returned.
func (s *IdempotencyStore) Begin(ctx context.Context, key string, lockTTL time.Duration) (IdemState, string, error) {
	ok, err := s.rdb.SetNX(ctx, key, idemLock, lockTTL).Result()
	if err != nil {
		return 0, "", err
	}
	if ok {
		return IdemAcquired, "", nil
	}

	v, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		// Expired between the two calls; let the client retry.
		return IdemInFlight, "", nil
	}
	if err != nil {
		return 0, "", err
	}

	if payload, ok := strings.CutPrefix(v, idemResPrefix); ok {
		return IdemDone, payload, nil
	}

	return IdemInFlight, "", nil
}

func (s *IdempotencyStore) Save(ctx context.Context, key string, jsonPayload string) error {
	return s.rdb.Set(ctx, key, idemResPrefix+jsonPayload, s.ttl).Err()
}

// Release drops the key so the request can be retried with it.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}
