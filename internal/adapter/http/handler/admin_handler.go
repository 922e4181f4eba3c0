package handler

import (
	"otp-wallet-ledger/internal/adapter/http/dto"
	"otp-wallet-ledger/internal/core/ports"
	"otp-wallet-ledger/pkg/apperror"
	"otp-wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AdminHandler serves the administrator-only ledger endpoints.
type AdminHandler struct {
	ledgerSvc ports.LedgerService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(ledgerSvc ports.LedgerService) *AdminHandler {
	return &AdminHandler{ledgerSvc: ledgerSvc}
}

// ListPending handles GET /v1/admin/pending-transactions.
func (h *AdminHandler) ListPending(c *gin.Context) {
	pending, err := h.ledgerSvc.ListPending(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewPendingResponses(pending))
}

// UpdateTransactionStatus handles POST /v1/admin/update-ts-status. It moves a
// pending transaction to completed.
func (h *AdminHandler) UpdateTransactionStatus(c *gin.Context) {
	var req dto.UpdateTransactionStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	walletID, err := uuid.Parse(req.WalletID)
	if err != nil {
		response.Error(c, apperror.Validation("Invalid walletId"))
		return
	}

	txn, err := h.ledgerSvc.CompleteTransaction(c.Request.Context(), walletID, req.TransactionID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewTransactionResponse(txn))
}
