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
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// LedgerServiceImpl implements ports.LedgerService.
// Every mutation runs in one DB transaction holding the wallet row lock.
type LedgerServiceImpl struct {
	walletRepo ports.WalletRepository
	txRepo     ports.TransactionRepository
	transactor ports.DBTransactor
	log        zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		walletRepo: walletRepo,
		txRepo:     txRepo,
		transactor: transactor,
		log:        log,
	}
}

// Deposit records a pending deposit. The balance is credited only when the
// deposit is completed.
func (s *LedgerServiceImpl) Deposit(ctx context.Context, userID uuid.UUID, transactionID string, amount decimal.Decimal) (*domain.Transaction, error) {
	if !domain.ValidAmount(amount) {
		return nil, apperror.ErrInvalidAmount()
	}
	if len(transactionID) < domain.MinTransactionIDLength ||
		len(transactionID) > domain.MaxTransactionIDLength ||
		domain.IsReservedTransactionID(transactionID) {
		return nil, apperror.ErrInvalidTransactionID()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := lockOrCreateWallet(ctx, s.walletRepo, dbTx, userID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}

	now := time.Now().UTC()
	txn := &domain.Transaction{
		ID:            uuid.New(),
		WalletID:      wallet.ID,
		TransactionID: transactionID,
		Type:          domain.TransactionTypeDeposit,
		Amount:        domain.RoundAmount(amount),
		Status:        domain.TransactionStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
		if errors.Is(err, domain.ErrDuplicateKey) {
			return nil, apperror.ErrDuplicate("Transaction")
		}
		return nil, apperror.InternalError(fmt.Errorf("create deposit: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("wallet_id", wallet.ID.String()).
		Str("transaction_id", transactionID).
		Str("amount", txn.Amount.StringFixed(2)).
		Msg("deposit recorded")

	return txn, nil
}

// Withdraw debits the wallet and records a pending withdrawal atomically.
func (s *LedgerServiceImpl) Withdraw(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*domain.Transaction, error) {
	if !domain.ValidAmount(amount) {
		return nil, apperror.ErrInvalidAmount()
	}
	amount = domain.RoundAmount(amount)

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.walletRepo.GetByUserIDForUpdate(ctx, dbTx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	// No wallet means a zero balance.
	if wallet == nil {
		return nil, apperror.ErrInsufficientFunds()
	}

	if err := wallet.Debit(amount); err != nil {
		if errors.Is(err, domain.ErrInsufficientBalance) {
			return nil, apperror.ErrInsufficientFunds()
		}
		return nil, apperror.ErrInvalidAmount()
	}

	if err := s.walletRepo.UpdateBalance(ctx, dbTx, wallet.ID, wallet.Balance); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update balance: %w", err))
	}

	now := time.Now().UTC()
	txn := &domain.Transaction{
		ID:            uuid.New(),
		WalletID:      wallet.ID,
		TransactionID: uuid.NewString(),
		Type:          domain.TransactionTypeWithdrawal,
		Amount:        amount,
		Status:        domain.TransactionStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create withdrawal: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("wallet_id", wallet.ID.String()).
		Str("transaction_id", txn.TransactionID).
		Str("amount", amount.StringFixed(2)).
		Str("balance", wallet.Balance.StringFixed(2)).
		Msg("withdrawal recorded")

	return txn, nil
}

// CompleteTransaction moves a pending transaction to completed. Deposits credit
// the wallet; withdrawals were debited when created.
func (s *LedgerServiceImpl) CompleteTransaction(ctx context.Context, walletID uuid.UUID, transactionID string) (*domain.Transaction, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.walletRepo.GetByIDForUpdate(ctx, dbTx, walletID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("Wallet")
	}

	txn, err := s.txRepo.GetForUpdate(ctx, dbTx, walletID, transactionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock transaction: %w", err))
	}
	if txn == nil {
		return nil, apperror.ErrNotFound("Transaction")
	}

	from := txn.Status
	if err := txn.Transition(domain.TransactionStatusCompleted); err != nil {
		return nil, apperror.ErrIllegalTransition(string(from), string(domain.TransactionStatusCompleted))
	}
	if err := s.txRepo.UpdateStatus(ctx, dbTx, txn.ID, txn.Status); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update status: %w", err))
	}

	if credit := txn.CompletionCredit(); credit.IsPositive() {
		if err := wallet.Credit(credit); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("credit wallet: %w", err))
		}
		if err := s.walletRepo.UpdateBalance(ctx, dbTx, wallet.ID, wallet.Balance); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("update balance: %w", err))
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	txn.UpdatedAt = time.Now().UTC()
	s.log.Info().
		Str("wallet_id", walletID.String()).
		Str("transaction_id", transactionID).
		Str("type", string(txn.Type)).
		Str("balance", wallet.Balance.StringFixed(2)).
		Msg("transaction completed")

	return txn, nil
}

// GetWallet returns the balance and full history. A user without a wallet
// gets an empty zero-balance view.
func (s *LedgerServiceImpl) GetWallet(ctx context.Context, userID uuid.UUID) (*domain.WalletView, error) {
	wallet, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return &domain.WalletView{
			Wallet:       &domain.Wallet{UserID: userID, Balance: decimal.Zero},
			Transactions: []domain.Transaction{},
		}, nil
	}

	txns, err := s.txRepo.ListByWallet(ctx, wallet.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list transactions: %w", err))
	}
	if txns == nil {
		txns = []domain.Transaction{}
	}

	return &domain.WalletView{Wallet: wallet, Transactions: txns}, nil
}

// ListPending returns every pending transaction across wallets.
func (s *LedgerServiceImpl) ListPending(ctx context.Context) ([]domain.PendingTransaction, error) {
	pending, err := s.txRepo.ListPending(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list pending: %w", err))
	}
	if pending == nil {
		pending = []domain.PendingTransaction{}
	}
	return pending, nil
}

// lockOrCreateWallet returns the user's wallet locked FOR UPDATE, creating it
// first when the user has none yet.
func lockOrCreateWallet(ctx context.Context, repo ports.WalletRepository, dbTx pgx.Tx, userID uuid.UUID) (*domain.Wallet, error) {
	wallet, err := repo.GetByUserIDForUpdate(ctx, dbTx, userID)
	if err != nil {
		return nil, fmt.Errorf("lock wallet: %w", err)
	}
	if wallet != nil {
		return wallet, nil
	}

	now := time.Now().UTC()
	if err := repo.Create(ctx, dbTx, &domain.Wallet{
		ID:        uuid.New(),
		UserID:    userID,
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		return nil, fmt.Errorf("create wallet: %w", err)
	}

	// Re-read so a wallet created concurrently by another request is the one we lock.
	wallet, err = repo.GetByUserIDForUpdate(ctx, dbTx, userID)
	if err != nil {
		return nil, fmt.Errorf("lock wallet: %w", err)
	}
	if wallet == nil {
		return nil, fmt.Errorf("wallet for user %s missing after create", userID)
	}
	return wallet, nil
}
