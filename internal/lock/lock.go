// Package lock provides the distributed leader lock that keeps exactly one
// scheduler instance active per deployment. The lock is a Redis key written
// with SET NX and a short TTL; the holder renews it on a timer independent
// of tick duration. If Redis is unreachable the lock degrades to "run
// anyway": duplicate processing is bounded by idempotency keys downstream,
// and the degraded mode is logged so it is observable.
package lock

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type Leader struct {
	rdb   *redis.Client
	key   string
	ttl   time.Duration
	owner string

	mu       sync.Mutex
	held     bool
	degraded bool

	renewCancel context.CancelFunc
	renewDone   chan struct{}
}

func NewLeader(rdb *redis.Client, key string, ttl time.Duration) (*Leader, error) {
	if key == "" {
		return nil, errors.New("lock key must not be empty")
	}
	if ttl <= 0 {
		return nil, errors.New("lock ttl must be > 0")
	}
	return &Leader{
		rdb:   rdb,
		key:   key,
		ttl:   ttl,
		owner: uuid.NewString(),
	}, nil
}

// TryAcquire attempts to take the lock. Returns true if this process is now
// (or already was) the leader. On Redis failure the lock degrades to held.
func (l *Leader) TryAcquire(ctx context.Context) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held && !l.degraded {
		return true
	}

	if l.rdb == nil {
		l.markDegradedLocked()
		return true
	}

	ok, err := l.rdb.SetNX(ctx, l.key, l.owner, l.ttl).Result()
	if err != nil {
		slog.Warn("leader lock store unreachable, running unlocked", "key", l.key, "error", err)
		l.markDegradedLocked()
		return true
	}

	if !ok {
		// Key exists; we may still be the owner after a degraded spell.
		val, err := l.rdb.Get(ctx, l.key).Result()
		if err != nil || val != l.owner {
			l.held = false
			l.degraded = false
			return false
		}
		ok = true
	}

	if l.degraded {
		slog.Info("leader lock store recovered", "key", l.key)
	}
	l.degraded = false
	if !l.held {
		slog.Info("leader lock acquired", "key", l.key, "ttl", l.ttl.String())
	}
	l.held = true
	if l.renewCancel == nil {
		l.startRenewLocked()
	}
	return true
}

// IsLeader reports whether this process currently believes it holds the lock.
func (l *Leader) IsLeader() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held
}

// Degraded reports whether leadership is only held because the lock store
// is unreachable.
func (l *Leader) Degraded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.degraded
}

// Release gives the lock up if we still own it and stops renewal.
func (l *Leader) Release(ctx context.Context) {
	l.mu.Lock()
	cancel := l.renewCancel
	done := l.renewDone
	l.renewCancel = nil
	l.renewDone = nil
	wasHeld := l.held
	l.held = false
	l.degraded = false
	l.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	if !wasHeld || l.rdb == nil {
		return
	}

	val, err := l.rdb.Get(ctx, l.key).Result()
	if err == nil && val == l.owner {
		_ = l.rdb.Del(ctx, l.key).Err()
	}
	slog.Info("leader lock released", "key", l.key)
}

// startRenewLocked runs the renewal loop on its own ticker so a slow tick
// cannot let the TTL lapse. Caller holds l.mu.
func (l *Leader) startRenewLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	l.renewCancel = cancel
	l.renewDone = done

	interval := l.ttl / 3
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.renew(ctx)
			}
		}
	}()
}

func (l *Leader) renew(ctx context.Context) {
	l.mu.Lock()
	held := l.held
	l.mu.Unlock()
	if !held {
		return
	}

	val, err := l.rdb.Get(ctx, l.key).Result()
	if err != nil {
		if err == redis.Nil {
			// TTL lapsed; next TryAcquire decides leadership again.
			l.mu.Lock()
			l.held = false
			l.mu.Unlock()
			slog.Warn("leader lock expired before renewal", "key", l.key)
			return
		}
		l.mu.Lock()
		l.degraded = true
		l.mu.Unlock()
		slog.Warn("leader lock renewal failed", "key", l.key, "error", err)
		return
	}
	if val != l.owner {
		l.mu.Lock()
		l.held = false
		l.mu.Unlock()
		slog.Warn("leader lock taken over by another instance", "key", l.key)
		return
	}
	_ = l.rdb.Expire(ctx, l.key, l.ttl).Err()
}

func (l *Leader) markDegradedLocked() {
	if !l.degraded {
		slog.Warn("leader lock degraded: assuming leadership without coordination", "key", l.key)
	}
	l.held = true
	l.degraded = true
}
