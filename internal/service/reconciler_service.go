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
)

// ReconcilerServiceImpl implements ports.ReconcilerService.
type ReconcilerServiceImpl struct {
	intentRepo ports.PaymentIntentRepository
	walletRepo ports.WalletRepository
	txRepo     ports.TransactionRepository
	transactor ports.DBTransactor
	log        zerolog.Logger
}

// NewReconcilerService creates a new ReconcilerServiceImpl.
func NewReconcilerService(
	intentRepo ports.PaymentIntentRepository,
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *ReconcilerServiceImpl {
	return &ReconcilerServiceImpl{
		intentRepo: intentRepo,
		walletRepo: walletRepo,
		txRepo:     txRepo,
		transactor: transactor,
		log:        log,
	}
}

// HandleWebhook settles the pending intent at n.Address and credits its owner.
// Intent completion and the wallet credit commit together or not at all.
func (s *ReconcilerServiceImpl) HandleWebhook(ctx context.Context, n domain.WebhookNotification) error {
	if n.Address == "" || n.TxID == "" || len(n.TxID) > domain.MaxProviderTxIDLength {
		return apperror.ErrMalformedWebhook()
	}
	if !domain.ValidAmount(n.Amount) {
		return apperror.ErrMalformedWebhook()
	}
	amount := domain.CreditAmount(n.Amount)

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	intent, err := s.intentRepo.GetPendingByAddressForUpdate(ctx, dbTx, n.Address)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lock intent: %w", err))
	}
	if intent == nil {
		s.log.Warn().Str("address", n.Address).Str("txid", n.TxID).Msg("webhook for unknown or settled address")
		return apperror.ErrIntentNotFound()
	}

	if !intent.Accepts(n.Amount) {
		s.log.Warn().
			Str("intent_id", intent.ID.String()).
			Str("expected", intent.Amount.StringFixed(2)).
			Str("received", n.Amount.String()).
			Msg("webhook amount below requested")
		return apperror.ErrUnderpaid()
	}

	swapped, err := s.intentRepo.MarkCompleted(ctx, dbTx, intent.ID, n.Raw)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("complete intent: %w", err))
	}
	if !swapped {
		return apperror.ErrIntentNotFound()
	}

	wallet, err := lockOrCreateWallet(ctx, s.walletRepo, dbTx, intent.UserID)
	if err != nil {
		return apperror.InternalError(err)
	}

	now := time.Now().UTC()
	credit := &domain.Transaction{
		ID:            uuid.New(),
		WalletID:      wallet.ID,
		TransactionID: domain.WebhookCreditID(n.TxID),
		Type:          domain.TransactionTypeDeposit,
		Amount:        amount,
		Status:        domain.TransactionStatusCompleted,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.txRepo.Create(ctx, dbTx, credit); err != nil {
		if errors.Is(err, domain.ErrDuplicateKey) {
			s.log.Warn().Str("intent_id", intent.ID.String()).Str("txid", n.TxID).Msg("provider txid already credited")
			return apperror.ErrAlreadyCredited()
		}
		return apperror.InternalError(fmt.Errorf("record credit: %w", err))
	}

	if err := wallet.Credit(amount); err != nil {
		return apperror.InternalError(fmt.Errorf("credit wallet: %w", err))
	}
	if err := s.walletRepo.UpdateBalance(ctx, dbTx, wallet.ID, wallet.Balance); err != nil {
		return apperror.InternalError(fmt.Errorf("update balance: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("intent_id", intent.ID.String()).
		Str("wallet_id", wallet.ID.String()).
		Str("txid", n.TxID).
		Str("amount", amount.StringFixed(2)).
		Msg("webhook credit applied")

	return nil
}
