package postgres

import (
	"context"
	"fmt"

	"otp-wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// BankAccountRepo implements ports.BankAccountRepository.
type BankAccountRepo struct {
	pool Pool
}

// NewBankAccountRepo creates a new BankAccountRepo.
func NewBankAccountRepo(pool Pool) *BankAccountRepo {
	return &BankAccountRepo{pool: pool}
}

// Create inserts a bank account within a transaction. A reused account
// number yields domain.ErrDuplicateKey.
func (r *BankAccountRepo) Create(ctx context.Context, tx pgx.Tx, b *domain.BankAccount) error {
	query := `INSERT INTO bank_accounts (id, user_id, account_no, account_name, ifsc, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := tx.Exec(ctx, query, b.ID, b.UserID, b.AccountNo, b.AccountName, b.IFSC, b.CreatedAt)
	if err != nil {
		return wrapErr("insert bank account", err)
	}
	return nil
}

// CountByUserForUpdate locks the owning account row, then counts its bank
// accounts. Concurrent adds for one user serialise on that lock until commit.
// This MUST be called within a transaction.
func (r *BankAccountRepo) CountByUserForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (int, error) {
	if _, err := tx.Exec(ctx, `SELECT id FROM accounts WHERE id = $1 FOR UPDATE`, userID); err != nil {
		return 0, fmt.Errorf("lock account: %w", err)
	}

	var n int
	err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM bank_accounts WHERE user_id = $1`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count bank accounts: %w", err)
	}
	return n, nil
}

// ListByUser returns a user's bank accounts in creation order.
func (r *BankAccountRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.BankAccount, error) {
	query := `SELECT id, user_id, account_no, account_name, ifsc, created_at
		FROM bank_accounts WHERE user_id = $1 ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list bank accounts: %w", err)
	}
	defer rows.Close()

	accounts := []domain.BankAccount{}
	for rows.Next() {
		b := domain.BankAccount{}
		if err := rows.Scan(&b.ID, &b.UserID, &b.AccountNo, &b.AccountName, &b.IFSC, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan bank account row: %w", err)
		}
		accounts = append(accounts, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bank account rows: %w", err)
	}
	return accounts, nil
}
