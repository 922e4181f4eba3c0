package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
)

// ErrEmptyResponse is returned when the upstream replies without a body.
var ErrEmptyResponse = errors.New("empty response from upstream")

// OTPDeliveryClient implements ports.OTPDeliveryClient against the delivery bot.
type OTPDeliveryClient struct {
	url       string
	signupKey string
	client    HTTPClient
}

// NewOTPDeliveryClient creates a delivery client posting to url.
func NewOTPDeliveryClient(url, signupKey string, client HTTPClient) *OTPDeliveryClient {
	return &OTPDeliveryClient{url: url, signupKey: signupKey, client: client}
}

type deliveryRequest struct {
	SignupKey string `json:"SIGNUP_KEY"`
	Mobile    string `json:"mobile"`
}

// Send asks the bot to generate and deliver a code to phone.
// The bot's JSON reply, which carries the code, is returned untouched.
func (c *OTPDeliveryClient) Send(ctx context.Context, phone string) ([]byte, error) {
	raw, err := postJSON(ctx, c.client, c.url, deliveryRequest{SignupKey: c.signupKey, Mobile: phone})
	if err != nil {
		return nil, fmt.Errorf("otp delivery: %w", err)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("otp delivery: %w", ErrEmptyResponse)
	}
	return raw, nil
}
