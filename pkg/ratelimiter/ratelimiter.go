package ratelimiter

import (
	"context"
	"fmt"
	"time"

	"anoa.com/threadgraph/pkg/apperror"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RateLimitError carries the wait time so handlers can set Retry-After.
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return e.Message
}

func (e *RateLimitError) Unwrap() error {
	return apperror.ErrRateLimitExceeded
}

// Cooldown enforces at most one action per user per window using redis SETNX.
// A nil client disables limiting.
type Cooldown struct {
	rdb    *redis.Client
	action string
	window time.Duration
}

func NewCooldown(rdb *redis.Client, action string, window time.Duration) *Cooldown {
	return &Cooldown{rdb: rdb, action: action, window: window}
}

func (c *Cooldown) key(userID uuid.UUID) string {
	return fmt.Sprintf("rate_limit:user:%s:%s", userID.String(), c.action)
}

// Acquire reports whether the caller may proceed.
func (c *Cooldown) Acquire(ctx context.Context, userID uuid.UUID) (bool, error) {
	if c == nil || c.rdb == nil || c.window <= 0 {
		return true, nil
	}

	wasSet, err := c.rdb.SetNX(ctx, c.key(userID), "locked", c.window).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit in redis: %w", err)
	}

	return wasSet, nil
}

// Remaining returns how long until the user may act again.
func (c *Cooldown) Remaining(ctx context.Context, userID uuid.UUID) (time.Duration, error) {
	if c == nil || c.rdb == nil {
		return 0, nil
	}
	return c.rdb.TTL(ctx, c.key(userID)).Result()
}

// Release clears the lock, used when the guarded action failed.
func (c *Cooldown) Release(ctx context.Context, userID uuid.UUID) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Del(ctx, c.key(userID)).Err()
}
