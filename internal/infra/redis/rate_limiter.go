package redis

import (
	"context"
	"fmt"
	"time"
)

// RateLimiter bounds redeem attempts per redeemer identity. It protects the
// gate against brute-forcing code strings; it is not part of the redemption
// state machine itself.
type RateLimiter struct {
	client RedisClient
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client}
}

func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := r.client.Incr(ctx, key)
	if err != nil {
		return false, err
	}

	if count == 1 {
		err = r.client.Expire(ctx, key, window)
		if err != nil {
			return false, err
		}
	}

	if count > int64(limit) {
		return false, nil
	}

	return true, nil
}

func RedeemAttemptKey(identity string) string {
	return fmt.Sprintf("rate_limit:redeem:%s", identity)
}
