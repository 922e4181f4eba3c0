package ports

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

import (
	"context"
	"time"

	"otp-wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- Infrastructure Ports ---

// CounterStore is an ephemeral key -> integer store with per-key expiry.
type CounterStore interface {
	// Increment adds one to key and resets its TTL to window, atomically.
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
	// Get returns the current count; found is false when the key is absent.
	Get(ctx context.Context, key string) (count int64, found bool, err error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// OTPCache holds issued OTP payloads keyed by phone.
type OTPCache interface {
	Set(ctx context.Context, phone string, payload []byte, ttl time.Duration) error
	// Get returns nil when no OTP is outstanding.
	Get(ctx context.Context, phone string) ([]byte, error)
	// Consume deletes the entry if it still equals payload and reports
	// whether this call removed it.
	Consume(ctx context.Context, phone string, payload []byte) (bool, error)
}

// OTPDeliveryClient asks the delivery bot to generate and send an OTP.
type OTPDeliveryClient interface {
	// Send returns the raw JSON payload from the bot, which carries the code.
	Send(ctx context.Context, phone string) ([]byte, error)
}

// AddressProvider issues fresh deposit addresses from the payment provider.
type AddressProvider interface {
	NewAddress(ctx context.Context) (*DepositAddress, error)
}

// DepositAddress is a provider-issued address and its QR image, if any.
type DepositAddress struct {
	Address   string
	QRCodeURL string
}

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(accountID uuid.UUID, phone string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	AccountID uuid.UUID
	Phone     string
}

// --- Service Ports (Business Logic) ---

// RateLimitService gates OTP issuance.
type RateLimitService interface {
	// CheckOTP applies the global, per-phone and per-IP policies in that order.
	CheckOTP(ctx context.Context, phone, ip string) error
}

// OTPService issues and verifies one-time passcodes.
type OTPService interface {
	SendOTP(ctx context.Context, phone, ip string) (*domain.SendOTPResult, error)
	VerifyOTP(ctx context.Context, phone, code string) error
}

// AuthService defines account sign-in.
type AuthService interface {
	SignIn(ctx context.Context, req SignInRequest) (*AuthResult, error)
	Login(ctx context.Context, phone, password string) (*AuthResult, error)
}

// SignInRequest holds OTP sign-in input. Password is used only on first sign-in.
type SignInRequest struct {
	Phone     string
	OTP       string
	Password  string
	PromoCode string
}

// AuthResult is returned on successful sign-in or login.
type AuthResult struct {
	Account   *domain.Account
	Token     string
	ExpiresAt time.Time
	Created   bool
}

// LedgerService applies wallet mutations.
type LedgerService interface {
	Deposit(ctx context.Context, userID uuid.UUID, transactionID string, amount decimal.Decimal) (*domain.Transaction, error)
	Withdraw(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*domain.Transaction, error)
	CompleteTransaction(ctx context.Context, walletID uuid.UUID, transactionID string) (*domain.Transaction, error)
	GetWallet(ctx context.Context, userID uuid.UUID) (*domain.WalletView, error)
	ListPending(ctx context.Context) ([]domain.PendingTransaction, error)
}

// ReconcilerService applies provider settlement notices.
type ReconcilerService interface {
	HandleWebhook(ctx context.Context, n domain.WebhookNotification) error
}

// PaymentService issues deposit intents.
type PaymentService interface {
	CreateDepositIntent(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*domain.PaymentIntent, error)
	ListIntents(ctx context.Context, userID uuid.UUID) ([]domain.PaymentIntent, error)
}

// BankAccountService manages linked bank accounts.
type BankAccountService interface {
	Add(ctx context.Context, account *domain.BankAccount) error
	List(ctx context.Context, userID uuid.UUID) ([]domain.BankAccount, error)
}

// AuditService records audit entries asynchronously.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
