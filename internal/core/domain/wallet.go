package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet holds a balance for a single owner. Balance is an exact decimal;
// monetary amounts never touch floating point. On the wire the balance is a
// quoted decimal string (`"balance":"10.11"`), which keeps arbitrary
// precision through any JSON intermediary.
type Wallet struct {
	ID      uuid.UUID       `json:"id"`
	Balance decimal.Decimal `json:"balance"`
	// Version is the optimistic-concurrency counter used by conditional
	// writes. It is a storage concern and never leaves the process.
	Version int64 `json:"-"`
}

// Delta returns the signed balance change for an adjustment: positive when
// adding funds, negative when removing them.
func Delta(amount decimal.Decimal, addingFunds bool) decimal.Decimal {
	if addingFunds {
		return amount
	}
	return amount.Neg()
}
