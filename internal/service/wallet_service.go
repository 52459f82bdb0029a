package service

import (
	"context"
	"fmt"

	"wallet-service/internal/core/domain"
	"wallet-service/internal/core/ports"
	"wallet-service/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// maxAdjustRetries bounds the optimistic-concurrency retry loop. Conflicts
// are only possible when two requests hit the same wallet id at once, so a
// small budget is enough.
const maxAdjustRetries = 3

// WalletServiceImpl implements ports.WalletService.
type WalletServiceImpl struct {
	store ports.WalletStore
	log   zerolog.Logger
}

// NewWalletService creates a new WalletServiceImpl.
func NewWalletService(store ports.WalletStore, log zerolog.Logger) *WalletServiceImpl {
	return &WalletServiceImpl{store: store, log: log}
}

// Create persists the wallet and returns it unchanged. The balance has
// already been validated at the boundary. A create against an existing id
// overwrites the stored wallet.
func (s *WalletServiceImpl) Create(ctx context.Context, wallet *domain.Wallet) (*domain.Wallet, error) {
	if err := s.store.Save(ctx, wallet); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("save wallet: %w", err))
	}

	s.log.Info().
		Str("wallet_id", wallet.ID.String()).
		Str("balance", wallet.Balance.String()).
		Msg("wallet created")

	return wallet, nil
}

// Fetch returns the stored wallet, or (nil, nil) when it does not exist.
func (s *WalletServiceImpl) Fetch(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	return wallet, nil
}

// Adjust applies a credit or debit to the wallet balance. Credits and debits
// share this single path: the direction only flips the sign of the delta,
// and the single post-condition (the new balance may not be negative)
// covers the debit rule.
func (s *WalletServiceImpl) Adjust(ctx context.Context, id uuid.UUID, amount decimal.Decimal, addingFunds bool) (*domain.Wallet, error) {
	if amount.Sign() <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	delta := domain.Delta(amount, addingFunds)

	for attempt := 0; attempt < maxAdjustRetries; attempt++ {
		wallet, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
		}
		if wallet == nil {
			return nil, nil
		}

		newBalance := wallet.Balance.Add(delta)
		if newBalance.IsNegative() {
			return nil, apperror.ErrInsufficientFunds()
		}

		wallet.Balance = newBalance
		ok, err := s.store.SaveVersioned(ctx, wallet)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("save wallet: %w", err))
		}
		if ok {
			s.log.Info().
				Str("wallet_id", id.String()).
				Str("delta", delta.String()).
				Str("balance", newBalance.String()).
				Msg("wallet balance adjusted")
			return wallet, nil
		}

		s.log.Warn().
			Str("wallet_id", id.String()).
			Int("attempt", attempt+1).
			Msg("wallet version conflict, retrying")
	}

	return nil, apperror.ErrUpdateConflict()
}
