package ports

import (
	"context"
	"time"

	"wallet-service/internal/core/domain"

	"github.com/google/uuid"
)

// WalletStore defines persistence operations for wallets against a keyed
// store. Lookups return (nil, nil) when the wallet does not exist; absence
// is a valid negative result, not an error.
type WalletStore interface {
	// Save writes the wallet unconditionally. An existing wallet under the
	// same id is overwritten.
	Save(ctx context.Context, wallet *domain.Wallet) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	// SaveVersioned writes the wallet only if the stored version still
	// matches wallet.Version, incrementing it on success. Returns false when
	// the version moved underneath the caller or the wallet is gone.
	SaveVersioned(ctx context.Context, wallet *domain.Wallet) (bool, error)
	// Delete removes a wallet. Administrative/test cleanup only; no HTTP
	// route reaches it.
	Delete(ctx context.Context, id uuid.UUID) error
}

// IdempotencyStore defines persistence for idempotency records.
type IdempotencyStore interface {
	Get(ctx context.Context, key uuid.UUID) (*domain.IdempotencyRecord, error)
	// Put writes the record unconditionally, replacing a pending claim with
	// the completed result.
	Put(ctx context.Context, record *domain.IdempotencyRecord) error
	// PutIfAbsent atomically creates the record only when no record exists
	// under its key. Returns true when this caller won the write. ttl bounds
	// how long the store keeps the record at most (pending claims use a
	// short ttl so a crashed winner cannot wedge the key).
	PutIfAbsent(ctx context.Context, record *domain.IdempotencyRecord, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key uuid.UUID) error
}
