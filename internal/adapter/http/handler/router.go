package handler

import (
	"otp-wallet-ledger/config"
	"otp-wallet-ledger/internal/adapter/http/middleware"
	redisStore "otp-wallet-ledger/internal/adapter/storage/redis"
	"otp-wallet-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	OTPSvc         ports.OTPService
	AuthSvc        ports.AuthService
	LedgerSvc      ports.LedgerService
	PaymentSvc     ports.PaymentService
	BankAccountSvc ports.BankAccountService
	ReconcilerSvc  ports.ReconcilerService
	TokenSvc       ports.TokenService
	RateLimitStore *redisStore.RateLimitStore // nil = blanket rate limiting disabled
	RateLimit      config.Policy
	Admin          config.AdminConfig
	WebhookAgent   string
	TrustedProxies []string // nil = X-Forwarded-For is ignored
	HealthCheckers []ports.HealthChecker
	AuditSvc       ports.AuditService // nil = audit logging disabled
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	// ClientIP feeds the per-IP limits, so forwarded headers are honoured only
	// from configured proxies.
	if err := r.SetTrustedProxies(deps.TrustedProxies); err != nil {
		deps.Logger.Error().Err(err).Strs("trusted_proxies", deps.TrustedProxies).Msg("invalid trusted proxies, trusting none")
		_ = r.SetTrustedProxies(nil)
	}

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit
	if deps.RateLimitStore != nil {
		r.Use(middleware.RateLimiter(deps.RateLimitStore, deps.RateLimit, deps.Logger))
	}

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	// Deep health check (PostgreSQL and Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	v1 := r.Group("/v1")

	// --- Public routes ---
	authHandler := NewAuthHandler(deps.OTPSvc, deps.AuthSvc)
	v1.POST("/send-otp", authHandler.SendOTP)
	v1.POST("/verify-otp", authHandler.VerifyOTP)
	v1.POST("/login", authHandler.Login)

	// --- Provider callback ---
	webhookHandler := NewWebhookHandler(deps.ReconcilerSvc)
	v1.POST("/webhook", middleware.WebhookAuth(deps.WebhookAgent, deps.Logger), webhookHandler.Handle)

	// --- JWT-authenticated routes ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	authed := v1.Group("", jwtAuth)

	ledgerHandler := NewLedgerHandler(deps.LedgerSvc)
	authed.GET("/wallet", ledgerHandler.GetWallet)
	transactions := authed.Group("/transactions")
	{
		transactions.POST("/add-money", ledgerHandler.AddMoney)
		transactions.POST("/withdraw", ledgerHandler.Withdraw)
	}

	paymentHandler := NewPaymentHandler(deps.PaymentSvc)
	authed.POST("/deposit-address", paymentHandler.CreateDepositAddress)
	authed.GET("/deposit-intents", paymentHandler.ListDepositIntents)

	bankHandler := NewBankAccountHandler(deps.BankAccountSvc)
	bank := authed.Group("/bank-accounts")
	{
		bank.POST("", bankHandler.Add)
		bank.GET("", bankHandler.List)
	}

	// --- Administrator routes ---
	adminHandler := NewAdminHandler(deps.LedgerSvc)
	admin := authed.Group("/admin", middleware.AdminOnly(deps.Admin, deps.Logger))
	{
		admin.GET("/pending-transactions", adminHandler.ListPending)
		admin.POST("/update-ts-status", adminHandler.UpdateTransactionStatus)
	}

	return r
}
