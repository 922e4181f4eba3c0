package ports

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

import (
	"context"

	"otp-wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// AccountRepository defines persistence operations for accounts.
type AccountRepository interface {
	Create(ctx context.Context, tx pgx.Tx, account *domain.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetByPhone(ctx context.Context, phone string) (*domain.Account, error)
}

// WalletRepository defines persistence operations for wallets.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic locking.
type WalletRepository interface {
	// Create inserts the wallet unless the user already has one.
	Create(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	GetByUserIDForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.Wallet, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, balance decimal.Decimal) error
}

// TransactionRepository defines persistence operations for wallet transactions.
type TransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, transaction *domain.Transaction) error
	GetForUpdate(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, transactionID string) (*domain.Transaction, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.TransactionStatus) error
	ListByWallet(ctx context.Context, walletID uuid.UUID) ([]domain.Transaction, error)
	ListPending(ctx context.Context) ([]domain.PendingTransaction, error)
}

// PaymentIntentRepository defines persistence operations for deposit intents.
type PaymentIntentRepository interface {
	Create(ctx context.Context, intent *domain.PaymentIntent) error
	GetPendingByAddressForUpdate(ctx context.Context, tx pgx.Tx, address string) (*domain.PaymentIntent, error)
	// MarkCompleted moves a pending intent to completed and stores the payload.
	// It returns false when the intent was no longer pending.
	MarkCompleted(ctx context.Context, tx pgx.Tx, id uuid.UUID, payload []byte) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.PaymentIntent, error)
}

// BankAccountRepository defines persistence operations for linked bank accounts.
type BankAccountRepository interface {
	Create(ctx context.Context, tx pgx.Tx, account *domain.BankAccount) error
	CountByUserForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (int, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.BankAccount, error)
}

// AuditRepository persists audit trail entries.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
