package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// HasCode reports whether err is an *AppError carrying the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// Business-rule failures are "soft": they are delivered with 200 OK and
// success=false so clients can render an inline message.

// ---- Validation (VAL) ----

// Validation returns a soft validation error with a custom message.
func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusOK)
}

func ErrInvalidPhone() *AppError {
	return New("VAL_002", "Invalid whatsappNumber format", http.StatusOK)
}

func ErrInvalidAmount() *AppError {
	return New("VAL_003", "Amount is too low", http.StatusOK)
}

func ErrInvalidTransactionID() *AppError {
	return New("VAL_004", "Invalid transactionId", http.StatusOK)
}

// ErrMalformedWebhook is returned to the payment provider for an unusable
// notice. It is not soft: the provider must not treat it as delivered.
func ErrMalformedWebhook() *AppError {
	return New("VAL_005", "Invalid request", http.StatusBadRequest)
}

// ---- Rate Limiting (RATE) ----

func ErrTooManyRequests() *AppError {
	return New("RATE_001", "Too many requests", http.StatusTooManyRequests)
}

func ErrServerBusy() *AppError {
	return New("RATE_002", "Server Busy", http.StatusServiceUnavailable)
}

// ---- OTP ----

func ErrOTPExpired() *AppError {
	return New("OTP_001", "Otp Expired, please try again", http.StatusOK)
}

func ErrWrongOTP() *AppError {
	return New("OTP_002", "Wrong Otp", http.StatusOK)
}

// ---- Not Found (NF) ----

func ErrNotFound(entity string) *AppError {
	return New("NF_001", fmt.Sprintf("%s not found", entity), http.StatusOK)
}

// ErrIntentNotFound is returned to the payment provider, which retries on non-2xx.
func ErrIntentNotFound() *AppError {
	return New("NF_002", "Payment not found.", http.StatusNotFound)
}

// ---- Conflict (CONF) ----

func ErrInsufficientFunds() *AppError {
	return New("CONF_001", "Insufficient balance for this withdrawal.", http.StatusOK)
}

func ErrDuplicate(entity string) *AppError {
	return New("CONF_002", fmt.Sprintf("%s already exists", entity), http.StatusOK)
}

func ErrIllegalTransition(from, to string) *AppError {
	return New("CONF_003", fmt.Sprintf("Transaction cannot move from %s to %s", from, to), http.StatusOK)
}

func ErrLimitReached(message string) *AppError {
	return New("CONF_004", message, http.StatusOK)
}

func ErrUnderpaid() *AppError {
	return New("CONF_005", "Payment amount is less than expected.", http.StatusBadRequest)
}

// ErrAlreadyCredited means the provider txid was booked by an earlier notice.
func ErrAlreadyCredited() *AppError {
	return New("CONF_006", "Payment already credited.", http.StatusConflict)
}

// ---- Authentication (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New("AUTH_001", "Invalid Password", http.StatusOK)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_002", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrForbidden() *AppError {
	return New("AUTH_003", "Forbidden: Unauthorized request.", http.StatusForbidden)
}

// ---- Upstream & Infrastructure ----

func ErrUpstream(err error) *AppError {
	return Wrap("UPSTREAM_001", "API error", http.StatusBadGateway, err)
}

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

func ErrCacheUnavailable(err error) *AppError {
	return Wrap("SYS_002", "Counter store unavailable", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_000 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_000", "Internal server error", http.StatusInternalServerError, err)
}
