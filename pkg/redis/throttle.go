package redis

import (
	"context"
	"time"
)

// Pinger exposes the health-check surface.
type Pinger interface {
	Ping(context.Context) error
}

// CooldownStore throttles repeated actions such as OTP resends.
type CooldownStore interface {
	Cooldown(ctx context.Context, scope, id string, ttl time.Duration) (bool, error)
	ReleaseCooldown(ctx context.Context, scope, id string) error
}

// RateLimiter counts hits per subject inside a fixed window.
type RateLimiter interface {
	Allow(ctx context.Context, scope, subject string, limit int64, window time.Duration) (Decision, error)
}

// IdempotencyStore is the replay cache used by the idempotency middleware.
type IdempotencyStore interface {
	Get(context.Context, string) (string, error)
	Set(context.Context, string, any, time.Duration) error
	SetNX(context.Context, string, any, time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
	Del(context.Context, ...string) error
}

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed    bool
	Count      int64
	RetryAfter time.Duration
}

// Cooldown claims scope/id for ttl and reports false while an earlier claim
// is still alive.
func (c *Client) Cooldown(ctx context.Context, scope, id string, ttl time.Duration) (bool, error) {
	if c.store == nil {
		return false, errNotInitialized
	}
	return c.store.SetNX(ctx, c.CooldownKey(scope, id), time.Now().UTC().Unix(), ttl).Result()
}

// ReleaseCooldown drops a claim early so the action can be retried.
func (c *Client) ReleaseCooldown(ctx context.Context, scope, id string) error {
	if c.store == nil {
		return errNotInitialized
	}
	return c.store.Del(ctx, c.CooldownKey(scope, id)).Err()
}

// Allow increments the window counter for subject. The window starts with
// the first hit; RetryAfter is the time left in it once the limit is passed.
func (c *Client) Allow(ctx context.Context, scope, subject string, limit int64, window time.Duration) (Decision, error) {
	if c.store == nil {
		return Decision{}, errNotInitialized
	}
	key := c.RateLimitKey(scope, subject)
	count, err := c.store.Incr(ctx, key).Result()
	if err != nil {
		return Decision{}, err
	}
	if count == 1 && window > 0 {
		if err := c.store.Expire(ctx, key, window).Err(); err != nil {
			return Decision{}, err
		}
	}
	d := Decision{Allowed: count <= limit, Count: count}
	if d.Allowed {
		return d, nil
	}
	ttl, err := c.store.PTTL(ctx, key).Result()
	if err != nil {
		return d, err
	}
	if ttl < 0 {
		// a key without expiry would block forever, so restart the window
		if err := c.store.Expire(ctx, key, window).Err(); err != nil {
			return d, err
		}
		ttl = window
	}
	d.RetryAfter = ttl
	return d, nil
}
