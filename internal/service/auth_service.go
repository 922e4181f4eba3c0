package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"otp-wallet-ledger/internal/core/domain"
	"otp-wallet-ledger/internal/core/ports"
	"otp-wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const codeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// maxRegisterAttempts bounds retries when a generated invite code or trade ID
// is already taken.
const maxRegisterAttempts = 3

// AuthServiceImpl implements ports.AuthService.
type AuthServiceImpl struct {
	otpSvc      ports.OTPService
	accountRepo ports.AccountRepository
	walletRepo  ports.WalletRepository
	hashSvc     ports.HashService
	tokenSvc    ports.TokenService
	transactor  ports.DBTransactor
	log         zerolog.Logger
}

// NewAuthService creates a new AuthServiceImpl.
func NewAuthService(
	otpSvc ports.OTPService,
	accountRepo ports.AccountRepository,
	walletRepo ports.WalletRepository,
	hashSvc ports.HashService,
	tokenSvc ports.TokenService,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		otpSvc:      otpSvc,
		accountRepo: accountRepo,
		walletRepo:  walletRepo,
		hashSvc:     hashSvc,
		tokenSvc:    tokenSvc,
		transactor:  transactor,
		log:         log,
	}
}

// SignIn verifies the OTP, then logs in the existing account or registers a new
// one together with its wallet.
func (s *AuthServiceImpl) SignIn(ctx context.Context, req ports.SignInRequest) (*ports.AuthResult, error) {
	if !domain.ValidPhone(req.Phone) {
		return nil, apperror.ErrInvalidPhone()
	}

	existing, err := s.accountRepo.GetByPhone(ctx, req.Phone)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lookup account: %w", err))
	}
	// Checked before verification so a missing password does not burn the code.
	if existing == nil && req.Password == "" {
		return nil, apperror.Validation("password is required")
	}

	if err := s.otpSvc.VerifyOTP(ctx, req.Phone, req.OTP); err != nil {
		return nil, err
	}

	account := existing
	created := false
	if account == nil {
		account, created, err = s.registerOrFetch(ctx, req)
		if err != nil {
			return nil, err
		}
	}

	token, expiresAt, err := s.tokenSvc.Generate(account.ID, account.Phone)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}

	s.log.Info().Str("account_id", account.ID.String()).Bool("created", created).Msg("account signed in")

	return &ports.AuthResult{
		Account:   account,
		Token:     token,
		ExpiresAt: expiresAt,
		Created:   created,
	}, nil
}

// Login authenticates an existing account by phone and password.
func (s *AuthServiceImpl) Login(ctx context.Context, phone, password string) (*ports.AuthResult, error) {
	account, err := s.accountRepo.GetByPhone(ctx, phone)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lookup account: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrNotFound("User")
	}

	match, err := s.hashSvc.Verify(password, account.PasswordHash)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("verify password: %w", err))
	}
	if !match {
		return nil, apperror.ErrInvalidCredentials()
	}

	token, expiresAt, err := s.tokenSvc.Generate(account.ID, account.Phone)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}

	return &ports.AuthResult{
		Account:   account,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

// registerOrFetch registers a new account once the OTP has been spent. A
// unique violation on the phone means a concurrent sign-up won, so that
// account is returned instead. Any other violation is a generated code
// collision and is retried with fresh codes.
func (s *AuthServiceImpl) registerOrFetch(ctx context.Context, req ports.SignInRequest) (*domain.Account, bool, error) {
	passwordHash, err := s.hashSvc.Hash(req.Password)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("hash password: %w", err))
	}

	for attempt := 1; ; attempt++ {
		account, err := s.register(ctx, req, passwordHash)
		if err == nil {
			return account, true, nil
		}
		if !errors.Is(err, domain.ErrDuplicateKey) {
			return nil, false, err
		}

		existing, lookupErr := s.accountRepo.GetByPhone(ctx, req.Phone)
		if lookupErr != nil {
			return nil, false, apperror.InternalError(fmt.Errorf("lookup account: %w", lookupErr))
		}
		if existing != nil {
			s.log.Info().Str("account_id", existing.ID.String()).Msg("concurrent sign-up already registered phone")
			return existing, false, nil
		}
		if attempt == maxRegisterAttempts {
			return nil, false, apperror.ErrDuplicate("Account")
		}
		s.log.Warn().Int("attempt", attempt).Msg("generated account code collided, retrying")
	}
}

// register creates the account and its empty wallet in one transaction. A
// unique violation is returned as domain.ErrDuplicateKey.
func (s *AuthServiceImpl) register(ctx context.Context, req ports.SignInRequest, passwordHash string) (*domain.Account, error) {
	inviteCode, err := generateCode(domain.InviteCodeLength)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate invite code: %w", err))
	}
	tradeID, err := generateCode(domain.TradeIDLength)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate trade id: %w", err))
	}

	promoCode := req.PromoCode
	if promoCode == "" {
		promoCode = domain.DefaultPromoCode
	}

	now := time.Now().UTC()
	account := &domain.Account{
		ID:           uuid.New(),
		Phone:        req.Phone,
		PasswordHash: passwordHash,
		PromoCode:    promoCode,
		InviteCode:   inviteCode,
		TradeID:      tradeID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	wallet := &domain.Wallet{
		ID:        uuid.New(),
		UserID:    account.ID,
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.accountRepo.Create(ctx, dbTx, account); err != nil {
		if errors.Is(err, domain.ErrDuplicateKey) {
			return nil, err
		}
		return nil, apperror.InternalError(fmt.Errorf("create account: %w", err))
	}
	if err := s.walletRepo.Create(ctx, dbTx, wallet); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create wallet: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	return account, nil
}

// generateCode returns n random characters from codeAlphabet.
func generateCode(n int) (string, error) {
	max := big.NewInt(int64(len(codeAlphabet)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = codeAlphabet[idx.Int64()]
	}
	return string(b), nil
}
