package postgres

import (
	"context"
	"errors"
	"fmt"

	"otp-wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AccountRepo implements ports.AccountRepository.
type AccountRepo struct {
	pool Pool
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(pool Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

const accountColumns = `id, phone, password_hash, promo_code, invite_code, trade_id, created_at, updated_at`

// Create inserts a new account within a database transaction.
func (r *AccountRepo) Create(ctx context.Context, tx pgx.Tx, a *domain.Account) error {
	query := `INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := tx.Exec(ctx, query,
		a.ID, a.Phone, a.PasswordHash, a.PromoCode,
		a.InviteCode, a.TradeID, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return wrapErr("insert account", err)
	}
	return nil
}

// GetByID fetches an account by its UUID.
func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(r.pool.QueryRow(ctx, query, id), "get account by id")
}

// GetByPhone fetches an account by phone number.
func (r *AccountRepo) GetByPhone(ctx context.Context, phone string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE phone = $1`
	return scanAccount(r.pool.QueryRow(ctx, query, phone), "get account by phone")
}

func scanAccount(row pgx.Row, op string) (*domain.Account, error) {
	a := &domain.Account{}
	err := row.Scan(
		&a.ID, &a.Phone, &a.PasswordHash, &a.PromoCode,
		&a.InviteCode, &a.TradeID, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}
