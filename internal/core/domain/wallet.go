package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MinAmount is the smallest amount any ledger mutation accepts.
var MinAmount = decimal.New(1, -2)

// RoundAmount rounds to two decimal places.
func RoundAmount(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ValidAmount reports whether amount is at least MinAmount.
func ValidAmount(amount decimal.Decimal) bool {
	return amount.GreaterThanOrEqual(MinAmount)
}

// Wallet is the single balance owned by an account. Balance never goes negative.
type Wallet struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Debit removes amount from the balance, refusing to overdraw.
func (w *Wallet) Debit(amount decimal.Decimal) error {
	if !ValidAmount(amount) {
		return ErrAmountTooLow
	}
	if w.Balance.LessThan(amount) {
		return ErrInsufficientBalance
	}
	w.Balance = RoundAmount(w.Balance.Sub(amount))
	return nil
}

// Credit adds amount to the balance.
func (w *Wallet) Credit(amount decimal.Decimal) error {
	if !ValidAmount(amount) {
		return ErrAmountTooLow
	}
	w.Balance = RoundAmount(w.Balance.Add(amount))
	return nil
}

// WalletView is a wallet together with its full transaction history.
type WalletView struct {
	Wallet       *Wallet       `json:"wallet"`
	Transactions []Transaction `json:"transactions"`
}
