package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"otp-wallet-ledger/config"
	redisstore "otp-wallet-ledger/internal/adapter/storage/redis"
	"otp-wallet-ledger/internal/core/ports/mocks"
	"otp-wallet-ledger/pkg/apperror"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func testPolicies() config.RateLimitConfig {
	return config.RateLimitConfig{
		Global: config.Policy{Limit: 60, Window: 600 * time.Second},
		Phone:  config.Policy{Limit: 4, Window: 60 * time.Second},
		IP:     config.Policy{Limit: 5, Window: 60 * time.Second},
	}
}

func setupRateLimitWithRedis(t *testing.T) (*RateLimitServiceImpl, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRateLimitService(redisstore.NewCounterStore(client), testPolicies(), zerolog.Nop()), mr
}

func TestRateLimitService_PhoneAllowsFourthDeniesFifth(t *testing.T) {
	svc, _ := setupRateLimitWithRedis(t)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		// distinct IPs so only the phone policy is in play
		err := svc.CheckOTP(ctx, "9876543210", fmt.Sprintf("10.0.0.%d", i))
		require.NoError(t, err, "request %d should pass", i)
	}

	err := svc.CheckOTP(ctx, "9876543210", "10.0.0.5")
	assertAppError(t, err, "RATE_001")

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusTooManyRequests, appErr.HTTPStatus)
}

func TestRateLimitService_DeniedCounterDoesNotGrow(t *testing.T) {
	svc, mr := setupRateLimitWithRedis(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_ = svc.CheckOTP(ctx, "9876543210", fmt.Sprintf("10.0.1.%d", i))
	}

	got, err := mr.Get("ratelimit:phone:9876543210")
	require.NoError(t, err)
	assert.Equal(t, "4", got)
}

func TestRateLimitService_IPLimit(t *testing.T) {
	svc, _ := setupRateLimitWithRedis(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.CheckOTP(ctx, fmt.Sprintf("98765432%02d", i), "1.2.3.4"))
	}
	err := svc.CheckOTP(ctx, "9876543299", "1.2.3.4")
	assertAppError(t, err, "RATE_001")
}

func TestRateLimitService_WindowSlides(t *testing.T) {
	svc, mr := setupRateLimitWithRedis(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.NoError(t, svc.CheckOTP(ctx, "9876543210", fmt.Sprintf("10.0.2.%d", i)))
	}
	assertAppError(t, svc.CheckOTP(ctx, "9876543210", "10.0.2.9"), "RATE_001")

	mr.FastForward(61 * time.Second)

	assert.NoError(t, svc.CheckOTP(ctx, "9876543210", "10.0.3.1"))
}

func TestRateLimitService_GlobalLimitReturnsServerBusy(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	counters := mocks.NewMockCounterStore(ctrl)
	svc := NewRateLimitService(counters, testPolicies(), zerolog.Nop())
	ctx := context.Background()

	counters.EXPECT().Get(ctx, "ratelimit:global:otp").Return(int64(60), true, nil)

	err := svc.CheckOTP(ctx, "9876543210", "1.2.3.4")
	assertAppError(t, err, "RATE_002")

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusServiceUnavailable, appErr.HTTPStatus)
	assert.Equal(t, "Server Busy", appErr.Message)
}

func TestRateLimitService_RaceOverLimitDenies(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	counters := mocks.NewMockCounterStore(ctrl)
	svc := NewRateLimitService(counters, testPolicies(), zerolog.Nop())
	ctx := context.Background()

	gomock.InOrder(
		counters.EXPECT().Get(ctx, "ratelimit:global:otp").Return(int64(10), true, nil),
		counters.EXPECT().Increment(ctx, "ratelimit:global:otp", 600*time.Second).Return(int64(11), nil),
		counters.EXPECT().Get(ctx, "ratelimit:phone:9876543210").Return(int64(3), true, nil),
		// a concurrent request got in between the read and the increment
		counters.EXPECT().Increment(ctx, "ratelimit:phone:9876543210", 60*time.Second).Return(int64(5), nil),
	)

	err := svc.CheckOTP(ctx, "9876543210", "1.2.3.4")
	assertAppError(t, err, "RATE_001")
}

func TestRateLimitService_EmptyKeyDenied(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	counters := mocks.NewMockCounterStore(ctrl)
	svc := NewRateLimitService(counters, testPolicies(), zerolog.Nop())
	ctx := context.Background()

	counters.EXPECT().Get(ctx, "ratelimit:global:otp").Return(int64(0), false, nil)
	counters.EXPECT().Increment(ctx, "ratelimit:global:otp", 600*time.Second).Return(int64(1), nil)

	err := svc.CheckOTP(ctx, "", "1.2.3.4")
	assertAppError(t, err, "RATE_001")
}

func TestRateLimitService_StoreDownIsHardFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	counters := mocks.NewMockCounterStore(ctrl)
	svc := NewRateLimitService(counters, testPolicies(), zerolog.Nop())
	ctx := context.Background()

	counters.EXPECT().Get(ctx, "ratelimit:global:otp").Return(int64(0), false, errors.New("connection refused"))

	err := svc.CheckOTP(ctx, "9876543210", "1.2.3.4")
	assertAppError(t, err, "SYS_002")
}

func TestRateLimitService_RedisClosed(t *testing.T) {
	svc, mr := setupRateLimitWithRedis(t)
	mr.Close()

	err := svc.CheckOTP(context.Background(), "9876543210", "1.2.3.4")
	assertAppError(t, err, "SYS_002")
}
