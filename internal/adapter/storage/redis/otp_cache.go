package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// OTPCache implements ports.OTPCache using Redis.
type OTPCache struct {
	client goredis.UniversalClient
	prefix string
}

// NewOTPCache creates a new Redis-backed OTP cache.
func NewOTPCache(client goredis.UniversalClient) *OTPCache {
	return &OTPCache{
		client: client,
		prefix: "otp:M",
	}
}

// Set stores the delivery payload for phone with TTL.
func (c *OTPCache) Set(ctx context.Context, phone string, payload []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+phone, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis otp set: %w", err)
	}
	return nil
}

// Get retrieves the outstanding payload for phone.
// Returns nil, nil if the key does not exist.
func (c *OTPCache) Get(ctx context.Context, phone string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefix+phone).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis otp get: %w", err)
	}
	return val, nil
}

// consumeScript deletes KEYS[1] only while it still holds ARGV[1].
var consumeScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Consume deletes the entry if it still holds payload. Only the caller whose
// delete removed the key gets true, so concurrent verifications of the same
// code accept exactly once and a code re-issued after payload was read
// survives.
func (c *OTPCache) Consume(ctx context.Context, phone string, payload []byte) (bool, error) {
	n, err := consumeScript.Run(ctx, c.client, []string{c.prefix + phone}, payload).Int64()
	if err != nil {
		return false, fmt.Errorf("redis otp consume: %w", err)
	}
	return n == 1, nil
}
