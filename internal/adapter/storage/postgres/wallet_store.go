package postgres

import (
	"context"
	"errors"
	"fmt"

	"wallet-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// WalletStore implements ports.WalletStore on PostgreSQL. The wallets table
// is used as a plain keyed collection: one row per wallet id, conditional
// updates on the version column.
type WalletStore struct {
	pool Pool
}

// NewWalletStore creates a new PostgreSQL-backed wallet store.
func NewWalletStore(pool Pool) *WalletStore {
	return &WalletStore{pool: pool}
}

// Save upserts the wallet, overwriting any existing row under the same id.
func (s *WalletStore) Save(ctx context.Context, w *domain.Wallet) error {
	query := `INSERT INTO wallets (id, balance, version) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET balance = EXCLUDED.balance, version = EXCLUDED.version`

	_, err := s.pool.Exec(ctx, query, w.ID, w.Balance.String(), w.Version)
	if err != nil {
		return fmt.Errorf("upsert wallet: %w", err)
	}
	return nil
}

// Get fetches a wallet by id, or nil, nil when no row exists.
func (s *WalletStore) Get(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT id, balance, version FROM wallets WHERE id = $1`

	w := &domain.Wallet{}
	var balance pgtype.Numeric
	err := s.pool.QueryRow(ctx, query, id).Scan(&w.ID, &balance, &w.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get wallet by id: %w", err)
	}

	w.Balance, err = numericToDecimal(balance)
	if err != nil {
		return nil, fmt.Errorf("get wallet by id: %w", err)
	}
	return w, nil
}

// SaveVersioned writes balance and bumps the version only if the stored
// version still matches w.Version. Returns false on conflict or missing row.
func (s *WalletStore) SaveVersioned(ctx context.Context, w *domain.Wallet) (bool, error) {
	query := `UPDATE wallets SET balance = $1, version = version + 1
		WHERE id = $2 AND version = $3`

	tag, err := s.pool.Exec(ctx, query, w.Balance.String(), w.ID, w.Version)
	if err != nil {
		return false, fmt.Errorf("conditional update wallet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	w.Version++
	return true, nil
}

// Delete removes the wallet row.
func (s *WalletStore) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM wallets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete wallet: %w", err)
	}
	return nil
}

// numericToDecimal converts a scanned NUMERIC into an exact decimal.
func numericToDecimal(n pgtype.Numeric) (decimal.Decimal, error) {
	if !n.Valid || n.NaN || n.Int == nil {
		return decimal.Decimal{}, fmt.Errorf("invalid numeric balance")
	}
	return decimal.NewFromBigInt(n.Int, n.Exp), nil
}
