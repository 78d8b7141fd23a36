package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// bucketTTL outlives the minute bucket slightly so a slow reader can still
// inspect a just-rolled-over counter.
const bucketTTL = 65 * time.Second

// MultiplierFunc resolves a tenant's quota multiplier. Must return >= 1.
type MultiplierFunc func(ctx context.Context, tenantID string) int

// Limiter is a per-tenant, per-operation-key sliding-minute counter backed
// by Redis, with a process-local fallback when Redis is unreachable. The
// fallback is a weaker guarantee: counts are per replica, not shared.
type Limiter struct {
	rdb        *redis.Client
	multiplier MultiplierFunc
	clock      func() time.Time

	mu       sync.Mutex
	local    map[string]int64
	degraded bool
}

type Option func(*Limiter)

// WithClock overrides the bucket clock, for tests.
func WithClock(clock func() time.Time) Option {
	return func(l *Limiter) { l.clock = clock }
}

func New(rdb *redis.Client, multiplier MultiplierFunc, opts ...Option) *Limiter {
	l := &Limiter{
		rdb:        rdb,
		multiplier: multiplier,
		clock:      time.Now,
		local:      make(map[string]int64),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Allow increments the (tenant, key, minute) bucket and reports whether the
// call is within quota. The effective limit is
// maxPerMinute*multiplier + burst*multiplier.
func (l *Limiter) Allow(ctx context.Context, tenantID, operationKey string, maxPerMinute, burst int) (bool, int64) {
	mult := 1
	if l.multiplier != nil {
		if m := l.multiplier(ctx, tenantID); m > 1 {
			mult = m
		}
	}
	limit := int64(maxPerMinute*mult + burst*mult)

	count := l.increment(ctx, l.bucketKey(tenantID, operationKey))
	return count <= limit, count
}

// Inspect returns the current bucket count, its remaining TTL and the
// effective limit, for the introspection endpoint.
func (l *Limiter) Inspect(ctx context.Context, tenantID, operationKey string, maxPerMinute, burst int) (count int64, ttl time.Duration, limit int64) {
	mult := 1
	if l.multiplier != nil {
		if m := l.multiplier(ctx, tenantID); m > 1 {
			mult = m
		}
	}
	limit = int64(maxPerMinute*mult + burst*mult)

	key := l.bucketKey(tenantID, operationKey)
	if l.rdb != nil {
		n, err := l.rdb.Get(ctx, key).Int64()
		if err == nil {
			t, _ := l.rdb.TTL(ctx, key).Result()
			return n, t, limit
		}
		if err == redis.Nil {
			return 0, 0, limit
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.local[key], 0, limit
}

// Degraded reports whether the last increment fell back to the local counter.
func (l *Limiter) Degraded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.degraded
}

func (l *Limiter) bucketKey(tenantID, operationKey string) string {
	minute := l.clock().UTC().Unix() / 60
	return fmt.Sprintf("rl:%s:%s:%d", tenantID, operationKey, minute)
}

func (l *Limiter) increment(ctx context.Context, key string) int64 {
	if l.rdb != nil {
		count, err := l.rdb.Incr(ctx, key).Result()
		if err == nil {
			if count == 1 {
				_ = l.rdb.Expire(ctx, key, bucketTTL).Err()
			}
			l.setDegraded(false)
			return count
		}
		slog.Warn("rate limiter falling back to local counter", "error", err)
	}
	l.setDegraded(true)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.local[key]++
	l.pruneLocked()
	return l.local[key]
}

func (l *Limiter) setDegraded(v bool) {
	l.mu.Lock()
	l.degraded = v
	l.mu.Unlock()
}

// pruneLocked drops buckets older than the current minute. Keys embed the
// minute number, so anything not matching the current or previous minute
// is garbage.
func (l *Limiter) pruneLocked() {
	if len(l.local) < 64 {
		return
	}
	minute := l.clock().UTC().Unix() / 60
	cur := fmt.Sprintf(":%d", minute)
	prev := fmt.Sprintf(":%d", minute-1)
	for k := range l.local {
		if !strings.HasSuffix(k, cur) && !strings.HasSuffix(k, prev) {
			delete(l.local, k)
		}
	}
}
