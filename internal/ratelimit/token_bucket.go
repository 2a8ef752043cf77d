package ratelimit

import (
	"context"
	"sync"
	"time"
)

// TokenBucket implements token bucket rate limiting.
type TokenBucket struct {
	mu         sync.Mutex
	rate       float64
	burst      int
	tokens     float64
	lastUpdate time.Time
	hold       pause
	config     Config
}

// NewTokenBucket creates a new token bucket limiter starting at full capacity.
func NewTokenBucket(cfg Config) *TokenBucket {
	cfg = applyDefaults(cfg)

	return &TokenBucket{
		rate:       cfg.RequestsPerSec,
		burst:      cfg.Burst,
		tokens:     float64(cfg.Burst),
		lastUpdate: time.Now(),
		config:     cfg,
	}
}

// Wait blocks until a token is taken or ctx is done.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		tb.mu.Lock()
		wait := tb.take(time.Now())
		tb.mu.Unlock()

		if wait == 0 {
			return nil
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Allow takes a token if one is available immediately.
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.take(time.Now()) == 0
}

// Reserve returns the duration to wait for the next token without taking it.
func (tb *TokenBucket) Reserve() time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	if d := tb.hold.remaining(now); d > 0 {
		return d
	}
	tb.refill(now)
	return tb.deficit()
}

// RetryAfter returns exponential backoff duration.
func (tb *TokenBucket) RetryAfter(attempt int) time.Duration {
	return CalculateBackoff(attempt, tb.config)
}

// Pause drains the bucket and holds back callers for d.
func (tb *TokenBucket) Pause(d time.Duration) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	tb.hold.extend(now, d)
	tb.tokens = 0
	tb.lastUpdate = now.Add(tb.hold.remaining(now))
}

// Reset refills the bucket and lifts any pause.
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.tokens = float64(tb.burst)
	tb.lastUpdate = time.Now()
	tb.hold.clear()
}

// take consumes a token or reports how long to wait (call with lock held).
func (tb *TokenBucket) take(now time.Time) time.Duration {
	if d := tb.hold.remaining(now); d > 0 {
		return d
	}
	tb.refill(now)
	if tb.tokens >= 1.0 {
		tb.tokens--
		return 0
	}
	return tb.deficit() + time.Nanosecond
}

func (tb *TokenBucket) deficit() time.Duration {
	if tb.tokens >= 1.0 {
		return 0
	}
	return time.Duration((1.0 - tb.tokens) / tb.rate * float64(time.Second))
}

// refill adds tokens based on elapsed time (call with lock held).
func (tb *TokenBucket) refill(now time.Time) {
	elapsed := now.Sub(tb.lastUpdate)
	if elapsed <= 0 {
		return
	}

	tb.tokens += elapsed.Seconds() * tb.rate
	if tb.tokens > float64(tb.burst) {
		tb.tokens = float64(tb.burst)
	}
	tb.lastUpdate = now
}
