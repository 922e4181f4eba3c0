package domain

import (
	"time"

	"github.com/google/uuid"
)

// MaxBankAccounts is the per-user cap on linked bank accounts.
const MaxBankAccounts = 4

// BankAccount is a payout destination linked by a user.
type BankAccount struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	AccountNo   string    `json:"account_no"`
	AccountName string    `json:"account_name"`
	IFSC        string    `json:"ifsc"`
	CreatedAt   time.Time `json:"created_at"`
}
