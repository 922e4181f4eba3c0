package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"otp-wallet-ledger/config"
	"otp-wallet-ledger/internal/core/ports"
	"otp-wallet-ledger/pkg/apperror"
	"otp-wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// Context keys
	CtxAccountID = "account_id"
	CtxPhone     = "phone"
	CtxRequestID = "request_id"

	bearerPrefix = "Bearer "
)

// RequestID tags every request with an id, reusing the caller's
// X-Request-ID when it looks sane.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(response.HeaderRequestID)
		if id == "" || len(id) > 64 {
			id = uuid.New().String()
		}
		c.Set(CtxRequestID, id)
		c.Header(response.HeaderRequestID, id)
		c.Next()
	}
}

// JWTAuth validates the bearer token and stores the account in the context.
func JWTAuth(tokenSvc ports.TokenService, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if len(authHeader) <= len(bearerPrefix) || !strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
			response.Abort(c, apperror.ErrInvalidToken())
			return
		}

		claims, err := tokenSvc.Validate(authHeader[len(bearerPrefix):])
		if err != nil {
			log.Debug().Err(err).Str("path", c.Request.URL.Path).Msg("token rejected")
			response.Abort(c, apperror.ErrInvalidToken())
			return
		}

		c.Set(CtxAccountID, claims.AccountID)
		c.Set(CtxPhone, claims.Phone)
		c.Next()
	}
}

// AdminOnly allows only the configured administrator phones. It must run
// after JWTAuth.
func AdminOnly(admins config.AdminConfig, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		phone := c.GetString(CtxPhone)
		if phone == "" || !admins.IsAdmin(phone) {
			log.Warn().Str("phone", phone).Str("path", c.Request.URL.Path).Msg("non-admin rejected")
			response.Abort(c, apperror.ErrForbidden())
			return
		}
		c.Next()
	}
}

// WebhookAuth admits only requests carrying the provider's User-Agent.
func WebhookAuth(userAgent string, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userAgent == "" || c.GetHeader("User-Agent") != userAgent {
			log.Warn().
				Str("user_agent", c.GetHeader("User-Agent")).
				Str("client_ip", c.ClientIP()).
				Msg("webhook rejected")
			response.Abort(c, apperror.ErrForbidden())
			return
		}
		c.Next()
	}
}

// AccountID returns the authenticated account, if any.
func AccountID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(CtxAccountID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// RequestLogger creates a middleware that logs every HTTP request.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		} else if status >= http.StatusBadRequest {
			event = log.Warn()
		}

		event.
			Str("request_id", c.GetString(CtxRequestID)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Msg("http request")
	}
}

// Recovery creates a panic recovery middleware.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("path", c.Request.URL.Path).Msg("panic recovered")
				response.Abort(c, apperror.Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, fmt.Errorf("panic: %v", r)))
			}
		}()
		c.Next()
	}
}

// MaxBodySize limits the request body. Reads past maxBytes fail, which the
// handlers report as a validation error.
func MaxBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
