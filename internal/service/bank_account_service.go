package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"otp-wallet-ledger/internal/core/domain"
	"otp-wallet-ledger/internal/core/ports"
	"otp-wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BankAccountServiceImpl implements ports.BankAccountService.
type BankAccountServiceImpl struct {
	repo       ports.BankAccountRepository
	transactor ports.DBTransactor
	log        zerolog.Logger
}

// NewBankAccountService creates a new BankAccountServiceImpl.
func NewBankAccountService(repo ports.BankAccountRepository, transactor ports.DBTransactor, log zerolog.Logger) *BankAccountServiceImpl {
	return &BankAccountServiceImpl{repo: repo, transactor: transactor, log: log}
}

// Add links a bank account, up to domain.MaxBankAccounts per user.
func (s *BankAccountServiceImpl) Add(ctx context.Context, account *domain.BankAccount) error {
	account.AccountNo = strings.TrimSpace(account.AccountNo)
	account.AccountName = strings.TrimSpace(account.AccountName)
	account.IFSC = strings.ToUpper(strings.TrimSpace(account.IFSC))
	if account.AccountNo == "" || account.AccountName == "" || account.IFSC == "" {
		return apperror.Validation("All fields are required")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	count, err := s.repo.CountByUserForUpdate(ctx, dbTx, account.UserID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("count bank accounts: %w", err))
	}
	if count >= domain.MaxBankAccounts {
		return apperror.ErrLimitReached(fmt.Sprintf("You can only add up to %d bank accounts", domain.MaxBankAccounts))
	}

	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	account.CreatedAt = time.Now().UTC()

	if err := s.repo.Create(ctx, dbTx, account); err != nil {
		if errors.Is(err, domain.ErrDuplicateKey) {
			return apperror.ErrDuplicate("Bank account")
		}
		return apperror.InternalError(fmt.Errorf("create bank account: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().Str("user_id", account.UserID.String()).Str("bank_account_id", account.ID.String()).Msg("bank account added")
	return nil
}

// List returns the user's linked bank accounts.
func (s *BankAccountServiceImpl) List(ctx context.Context, userID uuid.UUID) ([]domain.BankAccount, error) {
	accounts, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list bank accounts: %w", err))
	}
	if accounts == nil {
		accounts = []domain.BankAccount{}
	}
	return accounts, nil
}
