package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/creditledger/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestLockerTryLockAndRelease(t *testing.T) {
	_, client := newTestClient(t)
	locker := NewLocker(client)
	ctx := context.Background()

	token, ok, err := locker.TryLock(ctx, "k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.TryLock(ctx, "k", time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	// A stale token must not free someone else's lock.
	require.NoError(t, locker.Release(ctx, "k", "not-the-owner"))
	_, ok, err = locker.TryLock(ctx, "k", time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, locker.Release(ctx, "k", token))
	_, ok, err = locker.TryLock(ctx, "k", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLockerExpires(t *testing.T) {
	mr, client := newTestClient(t)
	locker := NewLocker(client)
	ctx := context.Background()

	_, ok, err := locker.TryLock(ctx, "k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)
	_, ok, err = locker.TryLock(ctx, "k", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNilLockerIsDisabled(t *testing.T) {
	locker := NewLocker(nil)
	assert.False(t, locker.Enabled())
	_, _, err := locker.TryLock(context.Background(), "k", time.Second)
	assert.ErrorIs(t, err, ErrLockNotConfigured)
}

func TestSubscriberLock(t *testing.T) {
	_, client := newTestClient(t)
	lock := NewSubscriberLock(config.Config{}, NewLocker(client))
	ctx := context.Background()

	release, ok, err := lock.Acquire(ctx, "user", "u-1")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = lock.Acquire(ctx, "user", "u-1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = lock.Acquire(ctx, "user", "u-2")
	require.NoError(t, err)
	assert.True(t, ok)

	release()
	_, ok, err = lock.Acquire(ctx, "user", "u-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSubscriberLockWithoutRedisAlwaysAcquires(t *testing.T) {
	lock := NewSubscriberLock(config.Config{}, NewLocker(nil))
	release, ok, err := lock.Acquire(context.Background(), "user", "u-1")
	require.NoError(t, err)
	assert.True(t, ok)
	release()
}

func TestAPILimiterDeniesAfterBurst(t *testing.T) {
	_, client := newTestClient(t)
	cfg := config.Config{RateLimit: config.RateLimitConfig{Enabled: true, APIRate: 0.001, APIBurst: 2}}
	limiter, err := NewAPILimiter(cfg, client)
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := limiter.AllowClient(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d", i)
	}
	res, err := limiter.AllowClient(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 2, res.Limit)
	assert.Positive(t, res.RetryAfter)

	res, err = limiter.AllowClient(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestAPILimiterDisabled(t *testing.T) {
	limiter, err := NewAPILimiter(config.Config{}, nil)
	require.NoError(t, err)
	assert.False(t, limiter.Enabled())

	res, err := limiter.AllowClient(context.Background(), "x")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	_, err = NewAPILimiter(config.Config{RateLimit: config.RateLimitConfig{Enabled: true, APIRate: 1, APIBurst: 1}}, nil)
	assert.Error(t, err)
}
