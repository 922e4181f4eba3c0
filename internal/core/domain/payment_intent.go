package domain

import (
	"encoding/json"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const qrCodeBaseURL = "https://quickchart.io/qr?margin=1&size=300&text="

// PaymentStatus is the lifecycle of a deposit intent.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// PaymentIntent is an expected deposit at a provider-issued address.
type PaymentIntent struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	Address   string          `json:"address"`
	QRCodeURL string          `json:"qr_code_url"`
	Amount    decimal.Decimal `json:"amount"`
	Status    PaymentStatus   `json:"status"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Accepts reports whether received settles the intent. Overpayment is accepted.
// received is compared unrounded; 19.995 does not settle 20.00.
func (p *PaymentIntent) Accepts(received decimal.Decimal) bool {
	return received.GreaterThanOrEqual(p.Amount)
}

// CreditAmount is the part of a received amount that is booked: whole cents,
// truncated so the ledger never credits more than arrived.
func CreditAmount(received decimal.Decimal) decimal.Decimal {
	return received.Truncate(2)
}

// QRCodeURL builds the fallback QR image URL for an address.
func QRCodeURL(address string) string {
	return qrCodeBaseURL + url.QueryEscape(address)
}

// WebhookNotification is a settlement notice from the payment provider.
type WebhookNotification struct {
	Address string
	TxID    string
	Amount  decimal.Decimal
	Raw     json.RawMessage
}
