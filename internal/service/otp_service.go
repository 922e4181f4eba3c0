package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"otp-wallet-ledger/internal/core/domain"
	"otp-wallet-ledger/internal/core/ports"
	"otp-wallet-ledger/pkg/apperror"

	"github.com/rs/zerolog"
)

// OTPServiceImpl implements ports.OTPService.
type OTPServiceImpl struct {
	limiter     ports.RateLimitService
	delivery    ports.OTPDeliveryClient
	cache       ports.OTPCache
	accountRepo ports.AccountRepository
	ttl         time.Duration
	log         zerolog.Logger
}

// NewOTPService creates a new OTPServiceImpl. Issued codes live for ttl.
func NewOTPService(
	limiter ports.RateLimitService,
	delivery ports.OTPDeliveryClient,
	cache ports.OTPCache,
	accountRepo ports.AccountRepository,
	ttl time.Duration,
	log zerolog.Logger,
) *OTPServiceImpl {
	return &OTPServiceImpl{
		limiter:     limiter,
		delivery:    delivery,
		cache:       cache,
		accountRepo: accountRepo,
		ttl:         ttl,
		log:         log,
	}
}

// SendOTP throttles, asks the delivery bot for a code and caches its payload.
func (s *OTPServiceImpl) SendOTP(ctx context.Context, phone, ip string) (*domain.SendOTPResult, error) {
	if err := s.limiter.CheckOTP(ctx, phone, ip); err != nil {
		return nil, err
	}

	if !domain.ValidPhone(phone) {
		return nil, apperror.ErrInvalidPhone()
	}

	payload, err := s.delivery.Send(ctx, phone)
	if err != nil {
		return nil, apperror.ErrUpstream(fmt.Errorf("deliver otp: %w", err))
	}
	record, err := domain.ParseOTPRecord(payload)
	if err != nil {
		return nil, apperror.ErrUpstream(fmt.Errorf("parse otp payload: %w", err))
	}
	if record.Code == "" {
		return nil, apperror.ErrUpstream(errors.New("otp payload has no code"))
	}

	if err := s.cache.Set(ctx, phone, payload, s.ttl); err != nil {
		return nil, apperror.ErrCacheUnavailable(fmt.Errorf("cache otp: %w", err))
	}

	account, err := s.accountRepo.GetByPhone(ctx, phone)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("lookup account: %w", err))
	}

	s.log.Info().Str("phone", phone).Bool("registered", account != nil).Msg("otp issued")

	return &domain.SendOTPResult{Registered: account != nil}, nil
}

// VerifyOTP accepts a code at most once. A wrong code leaves the entry in place.
func (s *OTPServiceImpl) VerifyOTP(ctx context.Context, phone, code string) error {
	payload, err := s.cache.Get(ctx, phone)
	if err != nil {
		return apperror.ErrCacheUnavailable(fmt.Errorf("read otp: %w", err))
	}
	if payload == nil {
		return apperror.ErrOTPExpired()
	}

	record, err := domain.ParseOTPRecord(payload)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("parse cached otp: %w", err))
	}
	if code == "" || record.Code != code {
		return apperror.ErrWrongOTP()
	}

	// Deletes only the payload checked above. A concurrent verifier, or a code
	// re-issued since the read, makes this report expired.
	removed, err := s.cache.Consume(ctx, phone, payload)
	if err != nil {
		return apperror.ErrCacheUnavailable(fmt.Errorf("consume otp: %w", err))
	}
	if !removed {
		return apperror.ErrOTPExpired()
	}

	s.log.Info().Str("phone", phone).Msg("otp verified")
	return nil
}
