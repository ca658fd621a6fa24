package http

import (
	"sync"
	"time"
)

type tokenBucket struct {
	tokens float64
	// refill accounting and staleness tracking are separate timestamps:
	// a denied request still counts as activity.
	refilledAt time.Time
	seenAt     time.Time
}

// RateLimiter throttles page and form traffic per client IP using token
// buckets. Buckets for clients that go quiet are pruned in the background.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*tokenBucket

	capacity float64
	perSec   float64
	ttl      time.Duration
	now      func() time.Time
}

// NewRateLimiter builds a limiter allowing bursts of maxTokens requests,
// refilled at refillPerSecond. Entries idle longer than ttl are dropped.
func NewRateLimiter(maxTokens int, refillPerSecond float64, ttl time.Duration) *RateLimiter {
	rl := &RateLimiter{
		buckets:  make(map[string]*tokenBucket),
		capacity: float64(maxTokens),
		perSec:   refillPerSecond,
		ttl:      ttl,
		now:      time.Now,
	}

	if ttl > 0 {
		ticker := time.NewTicker(ttl)
		go func() {
			for range ticker.C {
				rl.pruneStale()
			}
		}()
	}

	return rl
}

// Allow reports whether the client identified by key may proceed, spending
// one token when it does.
func (rl *RateLimiter) Allow(key string) bool {
	if key == "" {
		key = "unknown"
	}

	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	bucket, ok := rl.buckets[key]
	if !ok {
		bucket = &tokenBucket{tokens: rl.capacity, refilledAt: now}
		rl.buckets[key] = bucket
	}
	bucket.seenAt = now

	if elapsed := now.Sub(bucket.refilledAt).Seconds(); elapsed > 0 {
		bucket.tokens += elapsed * rl.perSec
		if bucket.tokens > rl.capacity {
			bucket.tokens = rl.capacity
		}
		bucket.refilledAt = now
	}

	if bucket.tokens < 1 {
		return false
	}

	bucket.tokens--
	return true
}

func (rl *RateLimiter) pruneStale() {
	if rl.ttl <= 0 {
		return
	}

	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, bucket := range rl.buckets {
		if now.Sub(bucket.seenAt) > rl.ttl {
			delete(rl.buckets, key)
		}
	}
}
