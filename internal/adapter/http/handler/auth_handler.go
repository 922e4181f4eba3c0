package handler

import (
	"net/http"

	"otp-wallet-ledger/internal/adapter/http/dto"
	"otp-wallet-ledger/internal/adapter/http/middleware"
	"otp-wallet-ledger/internal/core/ports"
	"otp-wallet-ledger/pkg/apperror"
	"otp-wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// AuthHandler handles OTP issuance, sign-in and password login.
type AuthHandler struct {
	otpSvc  ports.OTPService
	authSvc ports.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(otpSvc ports.OTPService, authSvc ports.AuthService) *AuthHandler {
	return &AuthHandler{otpSvc: otpSvc, authSvc: authSvc}
}

// SendOTP handles POST /v1/send-otp.
func (h *AuthHandler) SendOTP(c *gin.Context) {
	var req dto.SendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	result, err := h.otpSvc.SendOTP(c.Request.Context(), req.Phone, c.ClientIP())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.SendOTPResponse{
		Message:    "OTP sent successfully",
		Registered: result.Registered,
	})
}

// VerifyOTP handles POST /v1/verify-otp. A first successful verification
// registers the account.
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req dto.VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	result, err := h.authSvc.SignIn(c.Request.Context(), ports.SignInRequest{
		Phone:     req.Phone,
		OTP:       req.OTP,
		Password:  req.Password,
		PromoCode: req.PromoCode,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	h.writeAuth(c, result)
}

// Login handles POST /v1/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	result, err := h.authSvc.Login(c.Request.Context(), req.Phone, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.writeAuth(c, result)
}

func (h *AuthHandler) writeAuth(c *gin.Context, result *ports.AuthResult) {
	c.Set(middleware.CtxAccountID, result.Account.ID)
	c.Header("Authorization", "Bearer "+result.Token)

	body := dto.AuthResponse{
		Token:      result.Token,
		ExpiresAt:  result.ExpiresAt.Unix(),
		AccountID:  result.Account.ID.String(),
		Phone:      result.Account.Phone,
		InviteCode: result.Account.InviteCode,
		TradeID:    result.Account.TradeID,
		Created:    result.Created,
	}
	if result.Created {
		response.Created(c, body)
		return
	}
	response.OK(c, body)
}

// HealthCheck handles GET /health, pinging every dependency.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		type depStatus struct {
			Status string `json:"status"`
			Error  string `json:"error,omitempty"`
		}

		deps := make(map[string]depStatus)
		allHealthy := true

		for _, checker := range checkers {
			if err := checker.Ping(c.Request.Context()); err != nil {
				deps[checker.Name()] = depStatus{Status: "unhealthy", Error: err.Error()}
				allHealthy = false
			} else {
				deps[checker.Name()] = depStatus{Status: "healthy"}
			}
		}

		status := "healthy"
		httpCode := http.StatusOK
		if !allHealthy {
			status = "degraded"
			httpCode = http.StatusServiceUnavailable
		}

		c.JSON(httpCode, gin.H{
			"status":       status,
			"dependencies": deps,
		})
	}
}
