package domain

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultPromoCode = "TEMP12345"
	InviteCodeLength = 8
	TradeIDLength    = 6
)

var phonePattern = regexp.MustCompile(`^\d{10,15}$`)

// ValidPhone reports whether phone is 10 to 15 digits.
func ValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// Account is a user registered through OTP sign-in.
type Account struct {
	ID           uuid.UUID `json:"id"`
	Phone        string    `json:"phone"`
	PasswordHash string    `json:"-"`
	PromoCode    string    `json:"promo_code"`
	InviteCode   string    `json:"invite_code"`
	TradeID      string    `json:"trade_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
