package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallet-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// IdempotencyStore implements ports.IdempotencyStore on PostgreSQL. A NULL
// response column marks a pending claim.
type IdempotencyStore struct {
	pool Pool
}

// NewIdempotencyStore creates a new PostgreSQL-backed idempotency store.
func NewIdempotencyStore(pool Pool) *IdempotencyStore {
	return &IdempotencyStore{pool: pool}
}

// Get fetches the record for the key, or nil, nil when absent.
func (s *IdempotencyStore) Get(ctx context.Context, key uuid.UUID) (*domain.IdempotencyRecord, error) {
	query := `SELECT key, response, expires_at FROM idempotency_records WHERE key = $1`

	record := &domain.IdempotencyRecord{}
	err := s.pool.QueryRow(ctx, query, key).Scan(&record.Key, &record.Response, &record.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get idempotency record: %w", err)
	}
	return record, nil
}

// Put upserts the record, replacing a pending claim with the completed
// result.
func (s *IdempotencyStore) Put(ctx context.Context, record *domain.IdempotencyRecord) error {
	query := `INSERT INTO idempotency_records (key, response, expires_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET response = EXCLUDED.response, expires_at = EXCLUDED.expires_at`

	_, err := s.pool.Exec(ctx, query, record.Key, record.Response, record.ExpiresAt)
	if err != nil {
		return fmt.Errorf("upsert idempotency record: %w", err)
	}
	return nil
}

// PutIfAbsent inserts the record only when the key is free. The ttl is
// ignored here: PostgreSQL has no native key expiry, and the record's
// expires_at column already bounds its logical lifetime.
func (s *IdempotencyStore) PutIfAbsent(ctx context.Context, record *domain.IdempotencyRecord, _ time.Duration) (bool, error) {
	query := `INSERT INTO idempotency_records (key, response, expires_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO NOTHING`

	tag, err := s.pool.Exec(ctx, query, record.Key, record.Response, record.ExpiresAt)
	if err != nil {
		return false, fmt.Errorf("insert idempotency record: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Delete removes the record for the key.
func (s *IdempotencyStore) Delete(ctx context.Context, key uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM idempotency_records WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("delete idempotency record: %w", err)
	}
	return nil
}
