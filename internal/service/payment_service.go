package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"otp-wallet-ledger/internal/core/domain"
	"otp-wallet-ledger/internal/core/ports"
	"otp-wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PaymentServiceImpl implements ports.PaymentService.
type PaymentServiceImpl struct {
	intentRepo ports.PaymentIntentRepository
	provider   ports.AddressProvider
	log        zerolog.Logger
}

// NewPaymentService creates a new PaymentServiceImpl.
func NewPaymentService(intentRepo ports.PaymentIntentRepository, provider ports.AddressProvider, log zerolog.Logger) *PaymentServiceImpl {
	return &PaymentServiceImpl{
		intentRepo: intentRepo,
		provider:   provider,
		log:        log,
	}
}

// CreateDepositIntent asks the provider for a fresh address and records a
// pending intent expecting amount at it.
func (s *PaymentServiceImpl) CreateDepositIntent(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*domain.PaymentIntent, error) {
	if !domain.ValidAmount(amount) {
		return nil, apperror.ErrInvalidAmount()
	}

	addr, err := s.provider.NewAddress(ctx)
	if err != nil {
		return nil, apperror.ErrUpstream(fmt.Errorf("new deposit address: %w", err))
	}

	qr := addr.QRCodeURL
	if qr == "" {
		qr = domain.QRCodeURL(addr.Address)
	}

	now := time.Now().UTC()
	intent := &domain.PaymentIntent{
		ID:        uuid.New(),
		UserID:    userID,
		Address:   addr.Address,
		QRCodeURL: qr,
		Amount:    domain.RoundAmount(amount),
		Status:    domain.PaymentStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.intentRepo.Create(ctx, intent); err != nil {
		if errors.Is(err, domain.ErrDuplicateKey) {
			return nil, apperror.ErrDuplicate("Deposit address")
		}
		return nil, apperror.InternalError(fmt.Errorf("create intent: %w", err))
	}

	s.log.Info().
		Str("intent_id", intent.ID.String()).
		Str("user_id", userID.String()).
		Str("address", intent.Address).
		Str("amount", intent.Amount.StringFixed(2)).
		Msg("deposit intent created")

	return intent, nil
}

// ListIntents returns the user's deposit intents, newest first.
func (s *PaymentServiceImpl) ListIntents(ctx context.Context, userID uuid.UUID) ([]domain.PaymentIntent, error) {
	intents, err := s.intentRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list intents: %w", err))
	}
	if intents == nil {
		intents = []domain.PaymentIntent{}
	}
	return intents, nil
}
