package middleware

import (
	"strconv"
	"time"

	"otp-wallet-ledger/config"
	redisStore "otp-wallet-ledger/internal/adapter/storage/redis"
	"otp-wallet-ledger/pkg/apperror"
	"otp-wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RateLimiter caps every client IP at policy.Limit requests per window across
// the whole API. When Redis is unreachable requests are let through; the OTP
// limiter behind send-otp fails closed on its own.
func RateLimiter(store *redisStore.RateLimitStore, policy config.Policy, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := store.Allow(c.Request.Context(), c.ClientIP(), policy.Limit, policy.Window)
		if err != nil {
			log.Warn().Err(err).Str("client_ip", c.ClientIP()).Msg("rate limit check failed, allowing request (degraded mode)")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt, 10))

		if !result.Allowed {
			retryAfter := result.ResetAt - time.Now().Unix()
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			response.Abort(c, apperror.ErrTooManyRequests())
			return
		}

		c.Next()
	}
}
