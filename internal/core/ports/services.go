package ports

import (
	"context"

	"wallet-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WalletService defines the wallet business operations. Fetch and Adjust
// return (nil, nil) when the wallet does not exist; the handler maps that to
// a 404.
type WalletService interface {
	// Create persists the wallet and returns it. The boundary layer has
	// already validated the balance as present and non-negative. A colliding
	// id overwrites the stored wallet (observed behaviour, unresolved
	// product question).
	Create(ctx context.Context, wallet *domain.Wallet) (*domain.Wallet, error)
	Fetch(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	// Adjust applies a credit (addingFunds) or debit to the wallet balance.
	// amount must be strictly positive; a debit may not take the balance
	// below zero.
	Adjust(ctx context.Context, id uuid.UUID, amount decimal.Decimal, addingFunds bool) (*domain.Wallet, error)
}

// IdempotencyService guards mutating operations behind client-supplied keys.
//
// Lifecycle per key: Acquire claims the key (or returns the cached result of
// a previous winner); Complete publishes the successful result under the
// claim; Release abandons the claim when the operation produced nothing
// cacheable. Callers must finish every successful Acquire with exactly one
// Complete or Release.
type IdempotencyService interface {
	Acquire(ctx context.Context, key uuid.UUID) (cached *domain.Wallet, acquired bool, err error)
	Complete(ctx context.Context, key uuid.UUID, wallet *domain.Wallet) error
	Release(ctx context.Context, key uuid.UUID) error
}
