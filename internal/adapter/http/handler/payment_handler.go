package handler

import (
	"otp-wallet-ledger/internal/adapter/http/dto"
	"otp-wallet-ledger/internal/core/ports"
	"otp-wallet-ledger/pkg/apperror"
	"otp-wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// PaymentHandler issues and lists deposit intents.
type PaymentHandler struct {
	paymentSvc ports.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentSvc ports.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentSvc: paymentSvc}
}

// CreateDepositAddress handles POST /v1/deposit-address.
func (h *PaymentHandler) CreateDepositAddress(c *gin.Context) {
	userID, ok := currentAccount(c)
	if !ok {
		return
	}

	var req dto.DepositAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	intent, err := h.paymentSvc.CreateDepositIntent(c.Request.Context(), userID, req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.NewDepositIntentResponse(intent))
}

// ListDepositIntents handles GET /v1/deposit-intents.
func (h *PaymentHandler) ListDepositIntents(c *gin.Context) {
	userID, ok := currentAccount(c)
	if !ok {
		return
	}

	intents, err := h.paymentSvc.ListIntents(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	out := make([]dto.DepositIntentResponse, 0, len(intents))
	for i := range intents {
		out = append(out, dto.NewDepositIntentResponse(&intents[i]))
	}
	response.OK(c, out)
}
