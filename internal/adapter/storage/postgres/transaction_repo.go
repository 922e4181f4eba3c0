package postgres

import (
	"context"
	"errors"
	"fmt"

	"otp-wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TransactionRepo implements ports.TransactionRepository over wallet_transactions.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

const txColumns = `id, wallet_id, transaction_id, type, amount, status, created_at, updated_at`

// Create inserts a new transaction within a database transaction.
// A transaction_id already used in the wallet yields domain.ErrDuplicateKey.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `INSERT INTO wallet_transactions (` + txColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := tx.Exec(ctx, query,
		t.ID, t.WalletID, t.TransactionID, t.Type,
		t.Amount, t.Status, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return wrapErr("insert transaction", err)
	}
	return nil
}

// GetForUpdate fetches and locks a transaction by its wallet-scoped id.
func (r *TransactionRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, transactionID string) (*domain.Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM wallet_transactions
		WHERE wallet_id = $1 AND transaction_id = $2 FOR UPDATE`

	t := &domain.Transaction{}
	err := tx.QueryRow(ctx, query, walletID, transactionID).Scan(
		&t.ID, &t.WalletID, &t.TransactionID, &t.Type,
		&t.Amount, &t.Status, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get transaction for update: %w", err)
	}
	return t, nil
}

// UpdateStatus sets a transaction's status within a database transaction.
func (r *TransactionRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.TransactionStatus) error {
	query := `UPDATE wallet_transactions SET status = $1, updated_at = NOW() WHERE id = $2`

	tag, err := tx.Exec(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("update transaction status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction not found: %s", id)
	}
	return nil
}

// ListByWallet returns a wallet's history, oldest first.
func (r *TransactionRepo) ListByWallet(ctx context.Context, walletID uuid.UUID) ([]domain.Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM wallet_transactions
		WHERE wallet_id = $1 ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, walletID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	txns := []domain.Transaction{}
	for rows.Next() {
		t := domain.Transaction{}
		err := rows.Scan(
			&t.ID, &t.WalletID, &t.TransactionID, &t.Type,
			&t.Amount, &t.Status, &t.CreatedAt, &t.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txns, nil
}

// ListPending returns every pending transaction with its owner's phone.
func (r *TransactionRepo) ListPending(ctx context.Context) ([]domain.PendingTransaction, error) {
	query := `SELECT t.id, t.wallet_id, t.transaction_id, t.type, t.amount, t.status,
		t.created_at, t.updated_at, w.user_id, a.phone
		FROM wallet_transactions t
		JOIN wallets w ON w.id = t.wallet_id
		JOIN accounts a ON a.id = w.user_id
		WHERE t.status = 'pending'
		ORDER BY t.created_at ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list pending transactions: %w", err)
	}
	defer rows.Close()

	pending := []domain.PendingTransaction{}
	for rows.Next() {
		p := domain.PendingTransaction{}
		err := rows.Scan(
			&p.ID, &p.WalletID, &p.TransactionID, &p.Type,
			&p.Amount, &p.Status, &p.CreatedAt, &p.UpdatedAt,
			&p.UserID, &p.Phone,
		)
		if err != nil {
			return nil, fmt.Errorf("scan pending transaction row: %w", err)
		}
		pending = append(pending, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending transaction rows: %w", err)
	}
	return pending, nil
}
