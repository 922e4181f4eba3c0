package dto

import (
	"encoding/json"
	"time"

	"otp-wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ==================== Auth DTOs ====================

// SendOTPRequest is the body of POST /v1/send-otp.
type SendOTPRequest struct {
	Phone string `json:"phone" binding:"required"`
}

// SendOTPResponse tells the client which form to render next.
type SendOTPResponse struct {
	Message    string `json:"message"`
	Registered bool   `json:"registered"`
}

// VerifyOTPRequest is the body of POST /v1/verify-otp. Password and
// PromoCode are only read when the phone has no account yet.
type VerifyOTPRequest struct {
	Phone     string `json:"phone" binding:"required"`
	OTP       string `json:"otp" binding:"required,numeric,max=10"`
	Password  string `json:"password" binding:"omitempty,min=6,max=128" sanitize:"-"`
	PromoCode string `json:"promo_code" binding:"omitempty,max=32,safe_id"`
}

// LoginRequest is the body of POST /v1/login.
type LoginRequest struct {
	Phone    string `json:"phone" binding:"required"`
	Password string `json:"password" binding:"required,max=128" sanitize:"-"`
}

// AuthResponse is returned by verify-otp and login. The token is also
// sent in the Authorization header.
type AuthResponse struct {
	Token      string `json:"token"`
	ExpiresAt  int64  `json:"expires_at"`
	AccountID  string `json:"account_id"`
	Phone      string `json:"phone"`
	InviteCode string `json:"invite_code"`
	TradeID    string `json:"trade_id"`
	Created    bool   `json:"created"`
}

// ==================== Ledger DTOs ====================

// AddMoneyRequest records a pending deposit against a caller-supplied
// reference.
type AddMoneyRequest struct {
	TransactionID string          `json:"transaction_id" binding:"required,max=128,safe_id"`
	Amount        decimal.Decimal `json:"amount"`
}

// WithdrawRequest debits the wallet immediately.
type WithdrawRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// UpdateTransactionStatusRequest is the admin completion body.
type UpdateTransactionStatusRequest struct {
	WalletID      string `json:"wallet_id" binding:"required,uuid"`
	TransactionID string `json:"transaction_id" binding:"required,max=128"`
}

// TransactionResponse is the public shape of a ledger entry.
type TransactionResponse struct {
	ID            string `json:"id"`
	WalletID      string `json:"wallet_id"`
	TransactionID string `json:"transaction_id"`
	Type          string `json:"type"`
	Amount        string `json:"amount"`
	Status        string `json:"status"`
	CreatedAt     string `json:"created_at"`
}

// PendingTransactionResponse adds the owner to a pending entry.
type PendingTransactionResponse struct {
	TransactionResponse
	UserID string `json:"user_id"`
	Phone  string `json:"phone"`
}

// WalletResponse is the wallet together with its history.
type WalletResponse struct {
	WalletID     string                `json:"wallet_id,omitempty"`
	Balance      string                `json:"balance"`
	Transactions []TransactionResponse `json:"transactions"`
}

// ==================== Deposit Intent DTOs ====================

// DepositAddressRequest asks for a fresh provider address.
type DepositAddressRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// DepositIntentResponse is the public shape of a deposit intent.
type DepositIntentResponse struct {
	ID        string `json:"id"`
	Address   string `json:"address"`
	QRCodeURL string `json:"qr_code_url"`
	Amount    string `json:"amount"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// ==================== Bank Account DTOs ====================

// AddBankAccountRequest links a payout destination.
type AddBankAccountRequest struct {
	AccountNo   string `json:"account_no" binding:"required,max=34,alphanum"`
	AccountName string `json:"account_name" binding:"required,max=100"`
	IFSC        string `json:"ifsc" binding:"required,len=11,alphanum"`
}

// BankAccountResponse is the public shape of a linked account.
type BankAccountResponse struct {
	ID          string `json:"id"`
	AccountNo   string `json:"account_no"`
	AccountName string `json:"account_name"`
	IFSC        string `json:"ifsc"`
	CreatedAt   string `json:"created_at"`
}

// ==================== Webhook DTOs ====================

// WebhookRequest is the provider's settlement notice. It arrives either as
// JSON or as form fields.
type WebhookRequest struct {
	Address string      `json:"address" form:"address"`
	TxID    string      `json:"txid" form:"txid"`
	Amount  json.Number `json:"amount" form:"amount"`
}

// ==================== Mappers ====================

// NewTransactionResponse maps a domain transaction.
func NewTransactionResponse(t *domain.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:            t.ID.String(),
		WalletID:      t.WalletID.String(),
		TransactionID: t.TransactionID,
		Type:          string(t.Type),
		Amount:        t.Amount.StringFixed(2),
		Status:        string(t.Status),
		CreatedAt:     formatTime(t.CreatedAt),
	}
}

// NewWalletResponse maps a wallet view.
func NewWalletResponse(v *domain.WalletView) WalletResponse {
	resp := WalletResponse{
		Balance:      decimal.Zero.StringFixed(2),
		Transactions: make([]TransactionResponse, 0, len(v.Transactions)),
	}
	if v.Wallet != nil {
		resp.Balance = v.Wallet.Balance.StringFixed(2)
		if v.Wallet.ID != uuid.Nil {
			resp.WalletID = v.Wallet.ID.String()
		}
	}
	for i := range v.Transactions {
		resp.Transactions = append(resp.Transactions, NewTransactionResponse(&v.Transactions[i]))
	}
	return resp
}

// NewPendingResponses maps the admin pending list.
func NewPendingResponses(pending []domain.PendingTransaction) []PendingTransactionResponse {
	out := make([]PendingTransactionResponse, 0, len(pending))
	for i := range pending {
		out = append(out, PendingTransactionResponse{
			TransactionResponse: NewTransactionResponse(&pending[i].Transaction),
			UserID:              pending[i].UserID.String(),
			Phone:               pending[i].Phone,
		})
	}
	return out
}

// NewDepositIntentResponse maps a deposit intent.
func NewDepositIntentResponse(p *domain.PaymentIntent) DepositIntentResponse {
	return DepositIntentResponse{
		ID:        p.ID.String(),
		Address:   p.Address,
		QRCodeURL: p.QRCodeURL,
		Amount:    p.Amount.StringFixed(2),
		Status:    string(p.Status),
		CreatedAt: formatTime(p.CreatedAt),
	}
}

// NewBankAccountResponse maps a linked bank account.
func NewBankAccountResponse(b *domain.BankAccount) BankAccountResponse {
	return BankAccountResponse{
		ID:          b.ID.String(),
		AccountNo:   b.AccountNo,
		AccountName: b.AccountName,
		IFSC:        b.IFSC,
		CreatedAt:   formatTime(b.CreatedAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
