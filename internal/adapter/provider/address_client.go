package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"otp-wallet-ledger/internal/core/domain"
	"otp-wallet-ledger/internal/core/ports"
)

// AddressClient implements ports.AddressProvider against the crypto provider API.
type AddressClient struct {
	baseURL  string
	apiKey   string
	password string
	client   HTTPClient
}

// NewAddressClient creates a provider client rooted at baseURL.
func NewAddressClient(baseURL, apiKey, password string, client HTTPClient) *AddressClient {
	return &AddressClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		password: password,
		client:   client,
	}
}

type addressRequest struct {
	APIKey   string `json:"api_key"`
	Password string `json:"password"`
}

type addressResponse struct {
	Flag int    `json:"flag"`
	Msg  string `json:"msg"`
	Data *struct {
		Address string `json:"address"`
		QRCode  string `json:"qr_code"`
	} `json:"data"`
}

// NewAddress requests a fresh deposit address.
func (c *AddressClient) NewAddress(ctx context.Context) (*ports.DepositAddress, error) {
	raw, err := postJSON(ctx, c.client, c.baseURL+"/get-new-address", addressRequest{APIKey: c.apiKey, Password: c.password})
	if err != nil {
		return nil, fmt.Errorf("get new address: %w", err)
	}

	var resp addressResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode address response: %w", err)
	}
	if resp.Flag != 1 || resp.Data == nil || resp.Data.Address == "" {
		msg := resp.Msg
		if msg == "" {
			msg = "no address returned"
		}
		return nil, errors.New("get new address: " + msg)
	}

	qr := resp.Data.QRCode
	if qr == "" {
		qr = domain.QRCodeURL(resp.Data.Address)
	}
	return &ports.DepositAddress{Address: resp.Data.Address, QRCodeURL: qr}, nil
}
