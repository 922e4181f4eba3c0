package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MinTransactionIDLength applies to caller supplied deposit ids.
const MinTransactionIDLength = 7

// MaxTransactionIDLength matches the wallet_transactions.transaction_id column.
const MaxTransactionIDLength = 128

// Provider credits are stored under their own prefix so a caller's deposit
// reference can never collide with an on-chain txid.
const webhookCreditPrefix = "webhook:"

// MaxProviderTxIDLength is the longest provider txid that still fits once prefixed.
const MaxProviderTxIDLength = MaxTransactionIDLength - len(webhookCreditPrefix)

// WebhookCreditID is the ledger transaction id of the credit for a provider txid.
func WebhookCreditID(txid string) string {
	return webhookCreditPrefix + txid
}

// IsReservedTransactionID reports whether id belongs to the provider credit namespace.
func IsReservedTransactionID(id string) bool {
	return strings.HasPrefix(id, webhookCreditPrefix)
}

// TransactionType represents the kind of money movement.
type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
	TransactionTypeTransfer   TransactionType = "transfer"
)

// TransactionStatus represents the lifecycle state of a transaction.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// IsTerminal returns true if the status can no longer change.
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusCompleted || s == TransactionStatusFailed
}

// CanTransition reports whether from -> to is a legal move.
// Only pending may move, and only to a terminal state.
func CanTransition(from, to TransactionStatus) bool {
	return from == TransactionStatusPending && to.IsTerminal()
}

// Transaction is one entry in a wallet's ledger.
type Transaction struct {
	ID            uuid.UUID         `json:"id"`
	WalletID      uuid.UUID         `json:"wallet_id"`
	TransactionID string            `json:"transaction_id"`
	Type          TransactionType   `json:"type"`
	Amount        decimal.Decimal   `json:"amount"`
	Status        TransactionStatus `json:"status"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Transition moves the transaction to the given status or returns a *TransitionError.
func (t *Transaction) Transition(to TransactionStatus) error {
	if !CanTransition(t.Status, to) {
		return &TransitionError{From: t.Status, To: to}
	}
	t.Status = to
	return nil
}

// CompletionCredit is what completing this transaction adds to the balance.
// Withdrawals were debited at creation, so only deposits credit.
func (t *Transaction) CompletionCredit() decimal.Decimal {
	if t.Type == TransactionTypeDeposit {
		return t.Amount
	}
	return decimal.Zero
}

// PendingTransaction is a pending entry joined with its owner, for administrators.
type PendingTransaction struct {
	Transaction
	UserID uuid.UUID `json:"user_id"`
	Phone  string    `json:"phone"`
}
