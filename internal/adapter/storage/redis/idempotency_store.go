package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"wallet-service/internal/core/domain"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// expiryGrace pads the native Redis TTL past the record's logical expiry.
// The logical expires_at check stays authoritative (lazy eviction); the
// native TTL only garbage-collects records nobody ever looks at again.
const expiryGrace = time.Hour

// IdempotencyStore implements ports.IdempotencyStore on Redis.
type IdempotencyStore struct {
	client *goredis.Client
	prefix string
}

// NewIdempotencyStore creates a new Redis-backed idempotency store.
func NewIdempotencyStore(client *goredis.Client) *IdempotencyStore {
	return &IdempotencyStore{
		client: client,
		prefix: "idempotency:",
	}
}

func (s *IdempotencyStore) key(k uuid.UUID) string {
	return s.prefix + k.String()
}

// Get returns the record for the key, or nil, nil if absent.
func (s *IdempotencyStore) Get(ctx context.Context, key uuid.UUID) (*domain.IdempotencyRecord, error) {
	raw, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis idempotency get: %w", err)
	}

	record := &domain.IdempotencyRecord{}
	if err := json.Unmarshal(raw, record); err != nil {
		return nil, fmt.Errorf("unmarshal idempotency record: %w", err)
	}
	return record, nil
}

// Put writes the record unconditionally, replacing any pending claim.
func (s *IdempotencyStore) Put(ctx context.Context, record *domain.IdempotencyRecord) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal idempotency record: %w", err)
	}
	ttl := time.Until(record.ExpiresAt) + expiryGrace
	if err := s.client.Set(ctx, s.key(record.Key), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis idempotency set: %w", err)
	}
	return nil
}

// PutIfAbsent atomically creates the record only when the key is free,
// using SET NX. Returns true when this caller won the write.
func (s *IdempotencyStore) PutIfAbsent(ctx context.Context, record *domain.IdempotencyRecord, ttl time.Duration) (bool, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return false, fmt.Errorf("marshal idempotency record: %w", err)
	}
	won, err := s.client.SetNX(ctx, s.key(record.Key), raw, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis idempotency setnx: %w", err)
	}
	return won, nil
}

// Delete removes the record for the key.
func (s *IdempotencyStore) Delete(ctx context.Context, key uuid.UUID) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis idempotency del: %w", err)
	}
	return nil
}
