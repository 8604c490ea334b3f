package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultIdempotencyTTL = 24 * time.Hour

// IdempotencyStore remembers which record an Idempotency-Key produced.
// Key format: idem:<account_id>:<key>
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIdempotencyStore creates an IdempotencyStore wrapping the given Redis client.
func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return &IdempotencyStore{client: client, ttl: ttl}
}

// Lookup returns the record ID stored under key for the account, if any.
func (s *IdempotencyStore) Lookup(ctx context.Context, accountID, key string) (string, bool, error) {
	id, err := s.client.Get(ctx, s.key(accountID, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("idempotency lookup: %w", err)
	}
	return id, true, nil
}

// Remember stores recordID under key (expires after the configured TTL). The
// first writer wins; later writes for the same key are ignored.
func (s *IdempotencyStore) Remember(ctx context.Context, accountID, key, recordID string) error {
	if err := s.client.SetNX(ctx, s.key(accountID, key), recordID, s.ttl).Err(); err != nil {
		return fmt.Errorf("idempotency remember: %w", err)
	}
	return nil
}

func (s *IdempotencyStore) key(accountID, key string) string {
	return fmt.Sprintf("idem:%s:%s", accountID, key)
}
