package dto

import "github.com/shopspring/decimal"

// CreateWalletRequest is the body of POST /wallet.
// Balance is a pointer so a missing field can be told apart from zero.
type CreateWalletRequest struct {
	ID      string           `json:"id" binding:"required,uuid"`
	Balance *decimal.Decimal `json:"balance" binding:"required"`
}
