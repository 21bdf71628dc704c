package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	pkgredis "github.com/agriconnect/agriconnect-backend/pkg/redis"
)

// SchedulerLockKey is the default redis key held by the replica running a cycle.
const SchedulerLockKey = "agriconnect:lock:cron-scheduler"

const defaultLockTTL = 4 * time.Minute

// Lock coordinates exclusive cron cycles across worker replicas.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// RedisLock holds a redis lease for one cycle. Keep the TTL below the cron
// interval so a crashed replica cannot block the next cycle.
type RedisLock struct {
	lease pkgredis.Lease
	key   string
	ttl   time.Duration
	owner string
}

func NewRedisLock(lease pkgredis.Lease, key string, ttl time.Duration) (*RedisLock, error) {
	if lease == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		key = SchedulerLockKey
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{lease: lease, key: key, ttl: ttl}, nil
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	token := uuid.NewString()
	ok, err := l.lease.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	if ok {
		l.owner = token
	}
	return ok, nil
}

// Extend pushes the expiry out by the lock TTL for long cycles. It reports
// false when the lease was already lost.
func (l *RedisLock) Extend(ctx context.Context) (bool, error) {
	if l.owner == "" {
		return false, nil
	}
	ok, err := l.lease.ExtendIfOwner(ctx, l.key, l.owner, l.ttl)
	if err != nil {
		return false, fmt.Errorf("extend %s: %w", l.key, err)
	}
	return ok, nil
}

// Release drops the key atomically, and only while this replica owns it.
func (l *RedisLock) Release(ctx context.Context) error {
	if l.owner == "" {
		return nil
	}
	owner := l.owner
	l.owner = ""
	if _, err := l.lease.ReleaseIfOwner(ctx, l.key, owner); err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	return nil
}
