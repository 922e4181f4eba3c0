package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without wrapped error",
			appErr:   New("CONF_001", "Insufficient balance", http.StatusOK),
			expected: "[CONF_001] Insufficient balance",
		},
		{
			name:     "with wrapped error",
			appErr:   Wrap("SYS_001", "DB error", http.StatusInternalServerError, fmt.Errorf("connection refused")),
			expected: "[SYS_001] DB error: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appErr.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := Wrap("SYS_001", "wrapped", http.StatusInternalServerError, inner)

	assert.True(t, errors.Is(appErr, inner))
	assert.Nil(t, New("VAL_001", "test", http.StatusOK).Unwrap())
}

func TestHasCode(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", ErrWrongOTP())

	assert.True(t, HasCode(wrapped, "OTP_002"))
	assert.False(t, HasCode(wrapped, "OTP_001"))
	assert.False(t, HasCode(errors.New("plain"), "OTP_002"))
}

func TestThrottleErrorsAreDistinguishable(t *testing.T) {
	tooMany := ErrTooManyRequests()
	busy := ErrServerBusy()

	assert.Equal(t, http.StatusTooManyRequests, tooMany.HTTPStatus)
	assert.Equal(t, http.StatusServiceUnavailable, busy.HTTPStatus)
	assert.NotEqual(t, tooMany.Code, busy.Code)
}

func TestErrorCatalog(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"Validation", Validation("bad"), "VAL_001", 200},
		{"InvalidPhone", ErrInvalidPhone(), "VAL_002", 200},
		{"InvalidAmount", ErrInvalidAmount(), "VAL_003", 200},
		{"InvalidTransactionID", ErrInvalidTransactionID(), "VAL_004", 200},
		{"OTPExpired", ErrOTPExpired(), "OTP_001", 200},
		{"WrongOTP", ErrWrongOTP(), "OTP_002", 200},
		{"NotFound", ErrNotFound("Wallet"), "NF_001", 200},
		{"IntentNotFound", ErrIntentNotFound(), "NF_002", 404},
		{"InsufficientFunds", ErrInsufficientFunds(), "CONF_001", 200},
		{"Duplicate", ErrDuplicate("Transaction"), "CONF_002", 200},
		{"IllegalTransition", ErrIllegalTransition("completed", "completed"), "CONF_003", 200},
		{"LimitReached", ErrLimitReached("max"), "CONF_004", 200},
		{"Underpaid", ErrUnderpaid(), "CONF_005", 400},
		{"AlreadyCredited", ErrAlreadyCredited(), "CONF_006", 409},
		{"MalformedWebhook", ErrMalformedWebhook(), "VAL_005", 400},
		{"InvalidCredentials", ErrInvalidCredentials(), "AUTH_001", 200},
		{"InvalidToken", ErrInvalidToken(), "AUTH_002", 401},
		{"Forbidden", ErrForbidden(), "AUTH_003", 403},
		{"Upstream", ErrUpstream(nil), "UPSTREAM_001", 502},
		{"Database", ErrDatabaseError(nil), "SYS_001", 500},
		{"Cache", ErrCacheUnavailable(nil), "SYS_002", 500},
		{"Internal", InternalError(nil), "SYS_000", 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
		})
	}
}

func TestNotFound_EntityInMessage(t *testing.T) {
	assert.Equal(t, "Wallet not found", ErrNotFound("Wallet").Message)
	assert.Equal(t, "Bank account already exists", ErrDuplicate("Bank account").Message)
}
