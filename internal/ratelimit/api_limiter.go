package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/creditledger/internal/config"
)

const (
	keyAPIClient       = "creditledger:api:client:%s"
	keySubscriberGrant = "creditledger:feeder:lock:%s:%s"
)

// APILimiter throttles HTTP clients with one token bucket per client key.
type APILimiter struct {
	enabled bool
	bucket  *TokenBucket
	rate    float64
	burst   int
}

func NewAPILimiter(cfg config.Config, client *redis.Client) (*APILimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}
	if client == nil {
		return nil, errors.New("rate limit requires REDIS_ADDR")
	}
	if limitCfg.APIRate <= 0 || limitCfg.APIBurst <= 0 {
		return nil, errors.New("api rate limit must be positive")
	}

	return &APILimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		rate:    limitCfg.APIRate,
		burst:   limitCfg.APIBurst,
	}, nil
}

func (l *APILimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *APILimiter) AllowClient(ctx context.Context, clientKey string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	clientKey = strings.TrimSpace(clientKey)
	if clientKey == "" {
		clientKey = "anonymous"
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyAPIClient, clientKey), l.rate, l.burst)
}

// SubscriberLock serialises credit grants per subscriber across replicas.
type SubscriberLock struct {
	locker *Locker
	ttl    time.Duration
}

func NewSubscriberLock(cfg config.Config, locker *Locker) *SubscriberLock {
	ttl := time.Duration(cfg.RateLimit.LockTTLMS) * time.Millisecond
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &SubscriberLock{locker: locker, ttl: ttl}
}

// Acquire returns a release func. When redis is not configured the lock is a no-op
// and acquired is always true.
func (s *SubscriberLock) Acquire(ctx context.Context, subscriberType, subscriberID string) (release func(), acquired bool, err error) {
	if s == nil || !s.locker.Enabled() {
		return func() {}, true, nil
	}
	key := fmt.Sprintf(keySubscriberGrant, strings.TrimSpace(subscriberType), strings.TrimSpace(subscriberID))
	token, ok, err := s.locker.TryLock(ctx, key, s.ttl)
	if err != nil || !ok {
		return func() {}, false, err
	}
	return func() {
		// Release with a fresh context so a cancelled request still frees the key.
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.locker.Release(releaseCtx, key, token)
	}, true, nil
}
