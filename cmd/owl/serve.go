package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"otp-wallet-ledger/config"
	httpHandler "otp-wallet-ledger/internal/adapter/http/handler"
	"otp-wallet-ledger/internal/adapter/provider"
	pgStorage "otp-wallet-ledger/internal/adapter/storage/postgres"
	redisStorage "otp-wallet-ledger/internal/adapter/storage/redis"
	"otp-wallet-ledger/internal/core/ports"
	"otp-wallet-ledger/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func serveCmd(configPath *string) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			if migrate {
				if err := pgStorage.Migrate(cmd.Context(), cfg.Database.DSN(), pgStorage.MigrateUp, log); err != nil {
					return err
				}
			}
			return serve(cmd.Context(), cfg, log)
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving")

	return cmd
}

func serve(parent context.Context, cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gin.SetMode(cfg.Server.Mode)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting OTP wallet ledger")

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("connecting to PostgreSQL: %w", err)
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		return fmt.Errorf("connecting to Redis: %w", err)
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Repositories
	accountRepo := pgStorage.NewAccountRepo(pool)
	walletRepo := pgStorage.NewWalletRepo(pool)
	txRepo := pgStorage.NewTransactionRepo(pool)
	intentRepo := pgStorage.NewPaymentIntentRepo(pool)
	bankRepo := pgStorage.NewBankAccountRepo(pool)
	auditRepo := pgStorage.NewAuditRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Upstream collaborators
	otpDelivery := provider.NewOTPDeliveryClient(cfg.OTP.DeliveryURL, cfg.OTP.SignupKey, provider.NewHTTPClient(cfg.OTP.Timeout))
	addressProvider := provider.NewAddressClient(cfg.Provider.BaseURL, cfg.Provider.APIKey, cfg.Provider.Password, provider.NewHTTPClient(cfg.Provider.Timeout))

	// Services
	limiter := service.NewRateLimitService(redisStorage.NewCounterStore(rdb), cfg.RateLimit, log)
	otpSvc := service.NewOTPService(limiter, otpDelivery, redisStorage.NewOTPCache(rdb), accountRepo, cfg.OTP.TTL, log)
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	authSvc := service.NewAuthService(otpSvc, accountRepo, walletRepo, service.NewArgon2HashService(), tokenSvc, transactor, log)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		OTPSvc:         otpSvc,
		AuthSvc:        authSvc,
		LedgerSvc:      service.NewLedgerService(walletRepo, txRepo, transactor, log),
		PaymentSvc:     service.NewPaymentService(intentRepo, addressProvider, log),
		BankAccountSvc: service.NewBankAccountService(bankRepo, transactor, log),
		ReconcilerSvc:  service.NewReconcilerService(intentRepo, walletRepo, txRepo, transactor, log),
		TokenSvc:       tokenSvc,
		RateLimitStore: redisStorage.NewRateLimitStore(rdb),
		RateLimit:      cfg.RateLimit.Blanket,
		Admin:          cfg.Admin,
		WebhookAgent:   cfg.Webhook.UserAgent,
		TrustedProxies: cfg.Server.TrustedProxies,
		HealthCheckers: []ports.HealthChecker{pgStorage.NewHealthCheck(pool), redisStorage.NewHealthCheck(rdb)},
		AuditSvc:       service.NewAuditService(auditRepo, log),
		Logger:         log,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("Server exited gracefully")
	return nil
}
