package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestLimiter_AllowsUpToLimitThenRejects(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	now := time.Date(2026, 2, 2, 18, 0, 30, 0, time.UTC)
	l := New(rdb, nil, WithClock(fixedClock(now)))

	ctx := context.Background()
	const maxPerMinute, burst = 5, 2

	for i := 0; i < maxPerMinute+burst; i++ {
		allowed, count := l.Allow(ctx, "t1", "send:sms", maxPerMinute, burst)
		if !allowed {
			t.Fatalf("call %d: expected allowed, got rejected (count=%d)", i+1, count)
		}
	}

	allowed, count := l.Allow(ctx, "t1", "send:sms", maxPerMinute, burst)
	if allowed {
		t.Fatalf("expected rejection after %d calls, got allowed (count=%d)", maxPerMinute+burst, count)
	}
	if count != int64(maxPerMinute+burst+1) {
		t.Fatalf("expected count %d, got %d", maxPerMinute+burst+1, count)
	}
}

func TestLimiter_NextMinuteBucketResets(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	now := time.Date(2026, 2, 2, 18, 0, 59, 0, time.UTC)
	current := now
	l := New(rdb, nil, WithClock(func() time.Time { return current }))

	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if allowed, _ := l.Allow(ctx, "t1", "op", 2, 0); allowed != (i < 2) {
			t.Fatalf("call %d: unexpected allow result", i+1)
		}
	}

	// Same tenant, next calendar minute: fresh bucket.
	current = now.Add(time.Minute)
	if allowed, count := l.Allow(ctx, "t1", "op", 2, 0); !allowed || count != 1 {
		t.Fatalf("expected fresh bucket (allowed, count=1), got allowed=%v count=%d", allowed, count)
	}
}

func TestLimiter_TenantMultiplierScalesLimit(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	now := time.Date(2026, 2, 2, 18, 0, 0, 0, time.UTC)
	mult := func(_ context.Context, tenantID string) int {
		if tenantID == "vip" {
			return 3
		}
		return 1
	}
	l := New(rdb, mult, WithClock(fixedClock(now)))

	ctx := context.Background()

	// vip gets (2+1)*3 = 9 calls.
	for i := 0; i < 9; i++ {
		if allowed, count := l.Allow(ctx, "vip", "op", 2, 1); !allowed {
			t.Fatalf("vip call %d: expected allowed (count=%d)", i+1, count)
		}
	}
	if allowed, _ := l.Allow(ctx, "vip", "op", 2, 1); allowed {
		t.Fatalf("vip call 10: expected rejection")
	}

	// regular tenant gets 2+1 = 3 in the same minute.
	for i := 0; i < 3; i++ {
		if allowed, _ := l.Allow(ctx, "basic", "op", 2, 1); !allowed {
			t.Fatalf("basic call %d: expected allowed", i+1)
		}
	}
	if allowed, _ := l.Allow(ctx, "basic", "op", 2, 1); allowed {
		t.Fatalf("basic call 4: expected rejection")
	}
}

func TestLimiter_BucketsSeparatedByOperationKey(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	now := time.Date(2026, 2, 2, 18, 0, 0, 0, time.UTC)
	l := New(rdb, nil, WithClock(fixedClock(now)))

	ctx := context.Background()

	if allowed, _ := l.Allow(ctx, "t1", "send:sms", 1, 0); !allowed {
		t.Fatalf("expected first sms call allowed")
	}
	if allowed, _ := l.Allow(ctx, "t1", "send:sms", 1, 0); allowed {
		t.Fatalf("expected second sms call rejected")
	}
	// Different key, same tenant and minute.
	if allowed, _ := l.Allow(ctx, "t1", "send:email", 1, 0); !allowed {
		t.Fatalf("expected email call allowed")
	}
}

func TestLimiter_SetsBucketTTL(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	now := time.Date(2026, 2, 2, 18, 0, 0, 0, time.UTC)
	l := New(rdb, nil, WithClock(fixedClock(now)))

	l.Allow(context.Background(), "t1", "op", 10, 0)

	key := l.bucketKey("t1", "op")
	ttl := mr.TTL(key)
	if ttl <= 0 || ttl > bucketTTL {
		t.Fatalf("expected bucket TTL in (0, %v], got %v", bucketTTL, ttl)
	}
}

func TestLimiter_FallsBackToLocalCounter(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mr.Close() // every redis call now fails

	now := time.Date(2026, 2, 2, 18, 0, 0, 0, time.UTC)
	l := New(rdb, nil, WithClock(fixedClock(now)))

	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if allowed, _ := l.Allow(ctx, "t1", "op", 3, 0); !allowed {
			t.Fatalf("local call %d: expected allowed", i+1)
		}
	}
	if allowed, _ := l.Allow(ctx, "t1", "op", 3, 0); allowed {
		t.Fatalf("local call 4: expected rejection")
	}
	if !l.Degraded() {
		t.Fatalf("expected limiter to report degraded mode")
	}
}

func TestLimiter_NilClientUsesLocalCounter(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 2, 2, 18, 0, 0, 0, time.UTC)
	l := New(nil, nil, WithClock(fixedClock(now)))

	ctx := context.Background()
	if allowed, count := l.Allow(ctx, "t1", "op", 1, 0); !allowed || count != 1 {
		t.Fatalf("expected allowed with count=1, got allowed=%v count=%d", allowed, count)
	}
	if allowed, _ := l.Allow(ctx, "t1", "op", 1, 0); allowed {
		t.Fatalf("expected second call rejected")
	}
}

func TestLimiter_Inspect(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	now := time.Date(2026, 2, 2, 18, 0, 0, 0, time.UTC)
	l := New(rdb, nil, WithClock(fixedClock(now)))

	ctx := context.Background()

	count, _, limit := l.Inspect(ctx, "t1", "op", 5, 2)
	if count != 0 || limit != 7 {
		t.Fatalf("expected count=0 limit=7 before any call, got count=%d limit=%d", count, limit)
	}

	l.Allow(ctx, "t1", "op", 5, 2)
	l.Allow(ctx, "t1", "op", 5, 2)

	count, ttl, limit := l.Inspect(ctx, "t1", "op", 5, 2)
	if count != 2 {
		t.Fatalf("expected count=2, got %d", count)
	}
	if limit != 7 {
		t.Fatalf("expected limit=7, got %d", limit)
	}
	if ttl <= 0 {
		t.Fatalf("expected positive ttl, got %v", ttl)
	}
}
