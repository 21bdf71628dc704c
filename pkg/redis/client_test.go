package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/agriconnect/agriconnect-backend/pkg/config"
)

func TestAllowCountsWithinWindow(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	for i := int64(1); i <= 2; i++ {
		d, err := client.Allow(ctx, "otp_verify", "order-1", 2, time.Minute)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !d.Allowed || d.Count != i {
			t.Fatalf("hit %d: unexpected decision %+v", i, d)
		}
	}
	if len(mock.expireCalls) != 1 || mock.expireCalls[0].ttl != time.Minute {
		t.Fatalf("expected the window to start on the first hit, got %v", mock.expireCalls)
	}

	mock.ttl["agri:rate_limit:otp_verify:order-1"] = 40 * time.Second
	d, err := client.Allow(ctx, "otp_verify", "order-1", 2, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Allowed || d.RetryAfter != 40*time.Second {
		t.Fatalf("expected limit reached with retry hint, got %+v", d)
	}

	d, _ = client.Allow(ctx, "otp_verify", "order-2", 2, time.Minute)
	if !d.Allowed {
		t.Fatalf("other subjects should have their own window")
	}
}

func TestAllowRestartsWindowWithoutExpiry(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}
	mock.incr["agri:rate_limit:otp_verify:stuck"] = 9

	d, err := client.Allow(ctx, "otp_verify", "stuck", 5, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Allowed || d.RetryAfter != time.Minute {
		t.Fatalf("expected a fresh window, got %+v", d)
	}
	if len(mock.expireCalls) != 1 {
		t.Fatalf("expected expiry to be restored")
	}
}

func TestOptionsFromConfig(t *testing.T) {
	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatal("expected missing address error")
	}
	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://:pw@cache:6380/3", PoolSize: 20, DialTimeout: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Addr != "cache:6380" || opts.DB != 3 || opts.Password != "pw" {
		t.Fatalf("url not applied: %+v", opts)
	}
	if opts.PoolSize != 20 || opts.DialTimeout != time.Second {
		t.Fatalf("pool settings not filled: size=%d dial=%s", opts.PoolSize, opts.DialTimeout)
	}
}

func TestNilStoreErrors(t *testing.T) {
	client := &Client{}
	if err := client.Ping(context.Background()); err != errNotInitialized {
		t.Fatalf("expected not initialized, got %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close on empty client: %v", err)
	}
}

func TestCooldownBlocksUntilExpiry(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	ok, err := client.Cooldown(ctx, "otp", "order-1", 30*time.Second)
	if err != nil {
		t.Fatalf("cooldown failed: %v", err)
	}
	if !ok {
		t.Fatalf("expected first claim to succeed")
	}
	ok, err = client.Cooldown(ctx, "otp", "order-1", 30*time.Second)
	if err != nil {
		t.Fatalf("cooldown failed: %v", err)
	}
	if ok {
		t.Fatalf("expected second claim to be throttled")
	}
	ok, _ = client.Cooldown(ctx, "otp", "order-2", 30*time.Second)
	if !ok {
		t.Fatalf("other orders should not share the cooldown")
	}
}

func TestReleaseCooldownReopensClaim(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}

	if ok, err := client.Cooldown(ctx, "otp", "order-1", 30*time.Second); err != nil || !ok {
		t.Fatalf("expected first claim, got ok=%v err=%v", ok, err)
	}
	if err := client.ReleaseCooldown(ctx, "otp", "order-1"); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if ok, err := client.Cooldown(ctx, "otp", "order-1", 30*time.Second); err != nil || !ok {
		t.Fatalf("expected claim after release, got ok=%v err=%v", ok, err)
	}
	if err := (&Client{}).ReleaseCooldown(ctx, "otp", "order-1"); err == nil {
		t.Fatalf("expected error on nil store")
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	if got := client.IdempotencyKey("scope", "id"); got != "agri:idempotency:scope:id" {
		t.Fatalf("unexpected idempotency key %s", got)
	}
	if got := client.RateLimitKey("otp_verify", " user "); got != "agri:rate_limit:otp_verify:user" {
		t.Fatalf("unexpected rate limit key %s", got)
	}
	if got := client.CooldownKey("otp", "order"); got != "agri:cooldown:otp:order" {
		t.Fatalf("unexpected cooldown key %s", got)
	}
	if got := client.GeocodeKey("Pune, MH"); got != "agri:geocode:pune, mh" {
		t.Fatalf("unexpected geocode key %s", got)
	}
}

type mockCmdable struct {
	data        map[string]string
	incr        map[string]int64
	ttl         map[string]time.Duration
	expireCalls []expireCall
}

type expireCall struct {
	key string
	ttl time.Duration
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{
		data: make(map[string]string),
		incr: make(map[string]int64),
		ttl:  make(map[string]time.Duration),
	}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Incr(ctx context.Context, key string) *redis.IntCmd {
	m.incr[key]++
	return redis.NewIntResult(m.incr[key], nil)
}

func (m *mockCmdable) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	m.expireCalls = append(m.expireCalls, expireCall{key: key, ttl: expiration})
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) PTTL(ctx context.Context, key string) *redis.DurationCmd {
	if ttl, ok := m.ttl[key]; ok {
		return redis.NewDurationResult(ttl, nil)
	}
	return redis.NewDurationResult(-1, nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (m *mockCmdable) Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	key, owner := keys[0], fmt.Sprint(args[0])
	if m.data[key] != owner {
		return redis.NewCmdResult(int64(0), nil)
	}
	if script == compareAndExpire {
		m.ttl[key] = time.Duration(args[1].(int64)) * time.Millisecond
	} else {
		delete(m.data, key)
	}
	return redis.NewCmdResult(int64(1), nil)
}

func TestLeaseOnlyTouchesOwnedKeys(t *testing.T) {
	mock := newMockCmdable()
	client := &Client{store: mock}
	ctx := context.Background()

	if ok, err := client.SetNX(ctx, "lock", "me", time.Minute); err != nil || !ok {
		t.Fatalf("setnx: ok=%v err=%v", ok, err)
	}
	if ok, _ := client.ExtendIfOwner(ctx, "lock", "other", time.Minute); ok {
		t.Fatal("extended a lease held by another owner")
	}
	if ok, err := client.ExtendIfOwner(ctx, "lock", "me", 90*time.Second); err != nil || !ok {
		t.Fatalf("extend: ok=%v err=%v", ok, err)
	}
	if mock.ttl["lock"] != 90*time.Second {
		t.Fatalf("unexpected ttl %s", mock.ttl["lock"])
	}
	if ok, _ := client.ReleaseIfOwner(ctx, "lock", "other"); ok {
		t.Fatal("released a lease held by another owner")
	}
	if ok, err := client.ReleaseIfOwner(ctx, "lock", "me"); err != nil || !ok {
		t.Fatalf("release: ok=%v err=%v", ok, err)
	}
	if _, held := mock.data["lock"]; held {
		t.Fatal("lease still held after release")
	}
}
