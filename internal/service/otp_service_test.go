package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	redisstore "otp-wallet-ledger/internal/adapter/storage/redis"
	"otp-wallet-ledger/internal/core/domain"
	"otp-wallet-ledger/internal/core/ports/mocks"
	"otp-wallet-ledger/pkg/apperror"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const (
	testPhone  = "9876543210"
	testIP     = "203.0.113.7"
	testOTPTTL = 15 * time.Minute
)

type otpTestDeps struct {
	svc         *OTPServiceImpl
	limiter     *mocks.MockRateLimitService
	delivery    *mocks.MockOTPDeliveryClient
	cache       *mocks.MockOTPCache
	accountRepo *mocks.MockAccountRepository
	ctrl        *gomock.Controller
}

func setupOTPService(t *testing.T) *otpTestDeps {
	ctrl := gomock.NewController(t)
	d := &otpTestDeps{
		limiter:     mocks.NewMockRateLimitService(ctrl),
		delivery:    mocks.NewMockOTPDeliveryClient(ctrl),
		cache:       mocks.NewMockOTPCache(ctrl),
		accountRepo: mocks.NewMockAccountRepository(ctrl),
		ctrl:        ctrl,
	}
	d.svc = NewOTPService(d.limiter, d.delivery, d.cache, d.accountRepo, testOTPTTL, zerolog.Nop())
	return d
}

// ==================== SendOTP Tests ====================

func TestOTPService_SendOTP_NewUser(t *testing.T) {
	d := setupOTPService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	payload := []byte(`{"otp":"123456","status":"sent"}`)

	d.limiter.EXPECT().CheckOTP(ctx, testPhone, testIP).Return(nil)
	d.delivery.EXPECT().Send(ctx, testPhone).Return(payload, nil)
	d.cache.EXPECT().Set(ctx, testPhone, payload, testOTPTTL).Return(nil)
	d.accountRepo.EXPECT().GetByPhone(ctx, testPhone).Return(nil, nil)

	result, err := d.svc.SendOTP(ctx, testPhone, testIP)
	require.NoError(t, err)
	assert.False(t, result.Registered)
}

func TestOTPService_SendOTP_RegisteredUser(t *testing.T) {
	d := setupOTPService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	payload := []byte(`{"otp":654321}`)

	d.limiter.EXPECT().CheckOTP(ctx, testPhone, testIP).Return(nil)
	d.delivery.EXPECT().Send(ctx, testPhone).Return(payload, nil)
	d.cache.EXPECT().Set(ctx, testPhone, payload, testOTPTTL).Return(nil)
	d.accountRepo.EXPECT().GetByPhone(ctx, testPhone).Return(&domain.Account{ID: uuid.New(), Phone: testPhone}, nil)

	result, err := d.svc.SendOTP(ctx, testPhone, testIP)
	require.NoError(t, err)
	assert.True(t, result.Registered)
}

func TestOTPService_SendOTP_Throttled(t *testing.T) {
	d := setupOTPService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.limiter.EXPECT().CheckOTP(ctx, testPhone, testIP).Return(apperror.ErrTooManyRequests())

	_, err := d.svc.SendOTP(ctx, testPhone, testIP)
	assertAppError(t, err, "RATE_001")
}

func TestOTPService_SendOTP_InvalidPhone(t *testing.T) {
	d := setupOTPService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.limiter.EXPECT().CheckOTP(ctx, "12ab", testIP).Return(nil)

	_, err := d.svc.SendOTP(ctx, "12ab", testIP)
	assertAppError(t, err, "VAL_002")
}

func TestOTPService_SendOTP_DeliveryFailure(t *testing.T) {
	d := setupOTPService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.limiter.EXPECT().CheckOTP(ctx, testPhone, testIP).Return(nil)
	d.delivery.EXPECT().Send(ctx, testPhone).Return(nil, errors.New("bot unreachable"))

	_, err := d.svc.SendOTP(ctx, testPhone, testIP)
	assertAppError(t, err, "UPSTREAM_001")
}

func TestOTPService_SendOTP_PayloadWithoutCode(t *testing.T) {
	d := setupOTPService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.limiter.EXPECT().CheckOTP(ctx, testPhone, testIP).Return(nil)
	d.delivery.EXPECT().Send(ctx, testPhone).Return([]byte(`{"status":"queued"}`), nil)

	_, err := d.svc.SendOTP(ctx, testPhone, testIP)
	assertAppError(t, err, "UPSTREAM_001")
}

func TestOTPService_SendOTP_CacheDown(t *testing.T) {
	d := setupOTPService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	payload := []byte(`{"otp":"123456"}`)
	d.limiter.EXPECT().CheckOTP(ctx, testPhone, testIP).Return(nil)
	d.delivery.EXPECT().Send(ctx, testPhone).Return(payload, nil)
	d.cache.EXPECT().Set(ctx, testPhone, payload, testOTPTTL).Return(errors.New("redis down"))

	_, err := d.svc.SendOTP(ctx, testPhone, testIP)
	assertAppError(t, err, "SYS_002")
}

// ==================== VerifyOTP Tests ====================

func TestOTPService_VerifyOTP_Expired(t *testing.T) {
	d := setupOTPService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.cache.EXPECT().Get(ctx, testPhone).Return(nil, nil)

	err := d.svc.VerifyOTP(ctx, testPhone, "123456")
	assertAppError(t, err, "OTP_001")
}

func TestOTPService_VerifyOTP_WrongCodeKeepsEntry(t *testing.T) {
	d := setupOTPService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.cache.EXPECT().Get(ctx, testPhone).Return([]byte(`{"otp":"123456"}`), nil)
	d.cache.EXPECT().Consume(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	err := d.svc.VerifyOTP(ctx, testPhone, "000000")
	assertAppError(t, err, "OTP_002")
}

func TestOTPService_VerifyOTP_LostConsumeRace(t *testing.T) {
	d := setupOTPService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	payload := []byte(`{"otp":"123456"}`)
	d.cache.EXPECT().Get(ctx, testPhone).Return(payload, nil)
	d.cache.EXPECT().Consume(ctx, testPhone, payload).Return(false, nil)

	err := d.svc.VerifyOTP(ctx, testPhone, "123456")
	assertAppError(t, err, "OTP_001")
}

// Wrong code, then correct code, then replay of the correct code.
func TestOTPService_VerifyOTP_Scenario(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	cache := redisstore.NewOTPCache(client)
	svc := NewOTPService(nil, nil, cache, nil, testOTPTTL, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, testPhone, []byte(`{"otp":"123456"}`), testOTPTTL))

	assertAppError(t, svc.VerifyOTP(ctx, testPhone, "111111"), "OTP_002")
	require.NoError(t, svc.VerifyOTP(ctx, testPhone, "123456"))
	assertAppError(t, svc.VerifyOTP(ctx, testPhone, "123456"), "OTP_001")
}

// reissuingCache re-sends a fresh code right after the verifier reads the old one.
type reissuingCache struct {
	*redisstore.OTPCache
	fresh []byte
}

func (c *reissuingCache) Get(ctx context.Context, phone string) ([]byte, error) {
	payload, err := c.OTPCache.Get(ctx, phone)
	if err != nil || payload == nil {
		return payload, err
	}
	return payload, c.OTPCache.Set(ctx, phone, c.fresh, testOTPTTL)
}

func TestOTPService_VerifyOTP_ReissuedCodeSurvives(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	base := redisstore.NewOTPCache(client)
	cache := &reissuingCache{OTPCache: base, fresh: []byte(`{"otp":"654321"}`)}
	svc := NewOTPService(nil, nil, cache, nil, testOTPTTL, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, base.Set(ctx, testPhone, []byte(`{"otp":"123456"}`), testOTPTTL))

	assertAppError(t, svc.VerifyOTP(ctx, testPhone, "123456"), "OTP_001")

	stored, err := base.Get(ctx, testPhone)
	require.NoError(t, err)
	assert.JSONEq(t, `{"otp":"654321"}`, string(stored))

	require.NoError(t, NewOTPService(nil, nil, base, nil, testOTPTTL, zerolog.Nop()).VerifyOTP(ctx, testPhone, "654321"))
}

func TestOTPService_VerifyOTP_ExpiresAfterTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	cache := redisstore.NewOTPCache(client)
	svc := NewOTPService(nil, nil, cache, nil, testOTPTTL, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, testPhone, []byte(`{"otp":"123456"}`), testOTPTTL))
	mr.FastForward(testOTPTTL + time.Second)

	assertAppError(t, svc.VerifyOTP(ctx, testPhone, "123456"), "OTP_001")
}

func TestOTPService_VerifyOTP_ConcurrentExactlyOnce(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	cache := redisstore.NewOTPCache(client)
	svc := NewOTPService(nil, nil, cache, nil, testOTPTTL, zerolog.Nop())
	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, testPhone, []byte(`{"otp":"123456"}`), testOTPTTL))

	var accepted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if svc.VerifyOTP(ctx, testPhone, "123456") == nil {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), accepted.Load())
}
