package handler

import (
	"otp-wallet-ledger/internal/adapter/http/dto"
	"otp-wallet-ledger/internal/core/domain"
	"otp-wallet-ledger/internal/core/ports"
	"otp-wallet-ledger/pkg/apperror"
	"otp-wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// BankAccountHandler manages the user's payout accounts.
type BankAccountHandler struct {
	bankSvc ports.BankAccountService
}

// NewBankAccountHandler creates a new BankAccountHandler.
func NewBankAccountHandler(bankSvc ports.BankAccountService) *BankAccountHandler {
	return &BankAccountHandler{bankSvc: bankSvc}
}

// Add handles POST /v1/bank-accounts.
func (h *BankAccountHandler) Add(c *gin.Context) {
	userID, ok := currentAccount(c)
	if !ok {
		return
	}

	var req dto.AddBankAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	account := &domain.BankAccount{
		UserID:      userID,
		AccountNo:   req.AccountNo,
		AccountName: req.AccountName,
		IFSC:        req.IFSC,
	}
	if err := h.bankSvc.Add(c.Request.Context(), account); err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.NewBankAccountResponse(account))
}

// List handles GET /v1/bank-accounts.
func (h *BankAccountHandler) List(c *gin.Context) {
	userID, ok := currentAccount(c)
	if !ok {
		return
	}

	accounts, err := h.bankSvc.List(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	out := make([]dto.BankAccountResponse, 0, len(accounts))
	for i := range accounts {
		out = append(out, dto.NewBankAccountResponse(&accounts[i]))
	}
	response.OK(c, out)
}
