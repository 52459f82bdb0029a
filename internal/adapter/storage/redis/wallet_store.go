package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"wallet-service/internal/core/domain"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// WalletStore implements ports.WalletStore on Redis. Each wallet is a single
// JSON value under "wallet:<id>"; conditional writes use WATCH so that two
// concurrent read-modify-write cycles cannot silently drop an update.
type WalletStore struct {
	client *goredis.Client
	prefix string
}

// NewWalletStore creates a new Redis-backed wallet store.
func NewWalletStore(client *goredis.Client) *WalletStore {
	return &WalletStore{
		client: client,
		prefix: "wallet:",
	}
}

// walletPayload is the persisted shape. Unlike the API shape it carries the
// optimistic-concurrency version.
type walletPayload struct {
	ID      uuid.UUID       `json:"id"`
	Balance decimal.Decimal `json:"balance"`
	Version int64           `json:"version"`
}

func (s *WalletStore) key(id uuid.UUID) string {
	return s.prefix + id.String()
}

// Save writes the wallet unconditionally, overwriting any existing value.
func (s *WalletStore) Save(ctx context.Context, w *domain.Wallet) error {
	raw, err := json.Marshal(walletPayload{ID: w.ID, Balance: w.Balance, Version: w.Version})
	if err != nil {
		return fmt.Errorf("marshal wallet: %w", err)
	}
	if err := s.client.Set(ctx, s.key(w.ID), raw, 0).Err(); err != nil {
		return fmt.Errorf("redis wallet set: %w", err)
	}
	return nil
}

// Get returns the wallet, or nil, nil if the key does not exist.
func (s *WalletStore) Get(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis wallet get: %w", err)
	}

	var p walletPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("unmarshal wallet: %w", err)
	}
	return &domain.Wallet{ID: p.ID, Balance: p.Balance, Version: p.Version}, nil
}

// SaveVersioned writes the wallet only if the stored version still matches
// w.Version. On success the version is incremented (in the store and on w).
// Returns false when the wallet is gone or another writer got there first.
func (s *WalletStore) SaveVersioned(ctx context.Context, w *domain.Wallet) (bool, error) {
	key := s.key(w.ID)
	saved := false

	err := s.client.Watch(ctx, func(tx *goredis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, goredis.Nil) {
			return nil // wallet deleted underneath us
		}
		if err != nil {
			return err
		}

		var current walletPayload
		if err := json.Unmarshal(raw, &current); err != nil {
			return err
		}
		if current.Version != w.Version {
			return nil // lost the race, caller re-reads and retries
		}

		next, err := json.Marshal(walletPayload{ID: w.ID, Balance: w.Balance, Version: w.Version + 1})
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, next, 0)
			return nil
		})
		if errors.Is(err, goredis.TxFailedErr) {
			// Watched key changed between read and EXEC.
			return nil
		}
		if err != nil {
			return err
		}

		w.Version++
		saved = true
		return nil
	}, key)
	if err != nil {
		return false, fmt.Errorf("redis wallet conditional set: %w", err)
	}
	return saved, nil
}

// Delete removes the wallet key.
func (s *WalletStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("redis wallet del: %w", err)
	}
	return nil
}
