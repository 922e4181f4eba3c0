package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"otp-wallet-ledger/internal/adapter/http/dto"
	"otp-wallet-ledger/internal/core/domain"
	"otp-wallet-ledger/internal/core/ports"
	"otp-wallet-ledger/pkg/apperror"
	"otp-wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/shopspring/decimal"
)

// WebhookHandler receives settlement notices from the payment provider.
type WebhookHandler struct {
	reconcilerSvc ports.ReconcilerService
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(reconcilerSvc ports.ReconcilerService) *WebhookHandler {
	return &WebhookHandler{reconcilerSvc: reconcilerSvc}
}

// Handle handles POST /v1/webhook. The provider posts form fields; JSON is
// accepted as well.
func (h *WebhookHandler) Handle(c *gin.Context) {
	var req dto.WebhookRequest
	raw, err := bindWebhook(c, &req)
	if err != nil {
		response.Error(c, apperror.Wrap("VAL_005", "Invalid request", http.StatusBadRequest, err))
		return
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount.String()))
	if err != nil {
		response.Error(c, apperror.ErrMalformedWebhook())
		return
	}

	err = h.reconcilerSvc.HandleWebhook(c.Request.Context(), domain.WebhookNotification{
		Address: strings.TrimSpace(req.Address),
		TxID:    strings.TrimSpace(req.TxID),
		Amount:  amount,
		Raw:     raw,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"message": "Payment successfully processed."})
}

// bindWebhook decodes the notice and returns it as JSON for storage. JSON
// bodies are kept byte for byte; form bodies are re-encoded field by field.
func bindWebhook(c *gin.Context, req *dto.WebhookRequest) (json.RawMessage, error) {
	if c.ContentType() == binding.MIMEJSON {
		body, err := c.GetRawData()
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(body, req); err != nil {
			return nil, err
		}
		return body, nil
	}

	if err := c.ShouldBind(req); err != nil {
		return nil, err
	}
	fields := make(map[string]string, len(c.Request.PostForm))
	for k, v := range c.Request.PostForm {
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}
	return json.Marshal(fields)
}
