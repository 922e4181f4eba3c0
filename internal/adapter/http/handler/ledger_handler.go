package handler

import (
	"otp-wallet-ledger/internal/adapter/http/dto"
	"otp-wallet-ledger/internal/adapter/http/middleware"
	"otp-wallet-ledger/internal/core/ports"
	"otp-wallet-ledger/pkg/apperror"
	"otp-wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// LedgerHandler handles the authenticated user's wallet endpoints.
type LedgerHandler struct {
	ledgerSvc ports.LedgerService
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledgerSvc ports.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledgerSvc: ledgerSvc}
}

// GetWallet handles GET /v1/wallet.
func (h *LedgerHandler) GetWallet(c *gin.Context) {
	userID, ok := currentAccount(c)
	if !ok {
		return
	}

	view, err := h.ledgerSvc.GetWallet(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewWalletResponse(view))
}

// AddMoney handles POST /v1/transactions/add-money.
func (h *LedgerHandler) AddMoney(c *gin.Context) {
	userID, ok := currentAccount(c)
	if !ok {
		return
	}

	var req dto.AddMoneyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	txn, err := h.ledgerSvc.Deposit(c.Request.Context(), userID, req.TransactionID, req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.NewTransactionResponse(txn))
}

// Withdraw handles POST /v1/transactions/withdraw.
func (h *LedgerHandler) Withdraw(c *gin.Context) {
	userID, ok := currentAccount(c)
	if !ok {
		return
	}

	var req dto.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	txn, err := h.ledgerSvc.Withdraw(c.Request.Context(), userID, req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.NewTransactionResponse(txn))
}

// currentAccount reads the account set by JWTAuth, writing a 401 when absent.
func currentAccount(c *gin.Context) (uuid.UUID, bool) {
	id, ok := middleware.AccountID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return uuid.Nil, false
	}
	return id, true
}
