package postgres

import (
	"context"
	"errors"
	"fmt"

	"otp-wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PaymentIntentRepo implements ports.PaymentIntentRepository.
type PaymentIntentRepo struct {
	pool Pool
}

// NewPaymentIntentRepo creates a new PaymentIntentRepo.
func NewPaymentIntentRepo(pool Pool) *PaymentIntentRepo {
	return &PaymentIntentRepo{pool: pool}
}

const intentColumns = `id, user_id, address, qr_code_url, amount, status, created_at, updated_at`

// Create inserts a pending intent. A reused address yields domain.ErrDuplicateKey.
func (r *PaymentIntentRepo) Create(ctx context.Context, p *domain.PaymentIntent) error {
	query := `INSERT INTO payment_intents (` + intentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		p.ID, p.UserID, p.Address, p.QRCodeURL,
		p.Amount, p.Status, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return wrapErr("insert payment intent", err)
	}
	return nil
}

// GetPendingByAddressForUpdate locks the pending intent for an address.
// Returns nil, nil when no pending intent exists.
func (r *PaymentIntentRepo) GetPendingByAddressForUpdate(ctx context.Context, tx pgx.Tx, address string) (*domain.PaymentIntent, error) {
	query := `SELECT ` + intentColumns + ` FROM payment_intents
		WHERE address = $1 AND status = 'pending' FOR UPDATE`

	p := &domain.PaymentIntent{}
	err := tx.QueryRow(ctx, query, address).Scan(
		&p.ID, &p.UserID, &p.Address, &p.QRCodeURL,
		&p.Amount, &p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get pending intent by address: %w", err)
	}
	return p, nil
}

// MarkCompleted is a compare-and-set from pending. The payload is written once.
func (r *PaymentIntentRepo) MarkCompleted(ctx context.Context, tx pgx.Tx, id uuid.UUID, payload []byte) (bool, error) {
	query := `UPDATE payment_intents
		SET status = 'completed', payload = $1, updated_at = NOW()
		WHERE id = $2 AND status = 'pending'`

	tag, err := tx.Exec(ctx, query, payload, id)
	if err != nil {
		return false, fmt.Errorf("complete payment intent: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListByUser returns a user's intents, newest first.
func (r *PaymentIntentRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.PaymentIntent, error) {
	query := `SELECT ` + intentColumns + ` FROM payment_intents
		WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list payment intents: %w", err)
	}
	defer rows.Close()

	intents := []domain.PaymentIntent{}
	for rows.Next() {
		p := domain.PaymentIntent{}
		err := rows.Scan(
			&p.ID, &p.UserID, &p.Address, &p.QRCodeURL,
			&p.Amount, &p.Status, &p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan payment intent row: %w", err)
		}
		intents = append(intents, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment intent rows: %w", err)
	}
	return intents, nil
}
