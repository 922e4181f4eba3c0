package service

import (
	"context"
	"fmt"

	"otp-wallet-ledger/config"
	"otp-wallet-ledger/internal/core/ports"
	"otp-wallet-ledger/pkg/apperror"

	"github.com/rs/zerolog"
)

const (
	globalOTPKey   = "ratelimit:global:otp"
	phoneKeyPrefix = "ratelimit:phone:"
	ipKeyPrefix    = "ratelimit:ip:"
)

// RateLimitServiceImpl implements ports.RateLimitService on top of a CounterStore.
type RateLimitServiceImpl struct {
	counters ports.CounterStore
	policies config.RateLimitConfig
	log      zerolog.Logger
}

// NewRateLimitService creates a new RateLimitServiceImpl.
func NewRateLimitService(counters ports.CounterStore, policies config.RateLimitConfig, log zerolog.Logger) *RateLimitServiceImpl {
	return &RateLimitServiceImpl{
		counters: counters,
		policies: policies,
		log:      log,
	}
}

// CheckOTP applies the global, per-phone and per-IP policies in that order.
// The first denial wins; later counters are not touched.
func (s *RateLimitServiceImpl) CheckOTP(ctx context.Context, phone, ip string) error {
	allowed, err := s.allow(ctx, globalOTPKey, "global", s.policies.Global)
	if err != nil {
		return apperror.ErrCacheUnavailable(err)
	}
	if !allowed {
		s.log.Warn().Msg("global otp limit reached")
		return apperror.ErrServerBusy()
	}

	allowed, err = s.allow(ctx, phoneKeyPrefix+phone, phone, s.policies.Phone)
	if err != nil {
		return apperror.ErrCacheUnavailable(err)
	}
	if !allowed {
		s.log.Warn().Str("phone", phone).Msg("phone otp limit reached")
		return apperror.ErrTooManyRequests()
	}

	allowed, err = s.allow(ctx, ipKeyPrefix+ip, ip, s.policies.IP)
	if err != nil {
		return apperror.ErrCacheUnavailable(err)
	}
	if !allowed {
		s.log.Warn().Str("ip", ip).Msg("ip otp limit reached")
		return apperror.ErrTooManyRequests()
	}

	return nil
}

// allow runs one sliding-window check. A counter already at the limit denies
// without incrementing; otherwise the post-increment count decides.
func (s *RateLimitServiceImpl) allow(ctx context.Context, key, value string, p config.Policy) (bool, error) {
	if value == "" {
		return false, nil
	}

	count, found, err := s.counters.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("read counter %s: %w", key, err)
	}
	if found && count >= p.Limit {
		return false, nil
	}

	count, err = s.counters.Increment(ctx, key, p.Window)
	if err != nil {
		return false, fmt.Errorf("increment counter %s: %w", key, err)
	}
	return count <= p.Limit, nil
}
