package ratelimit

import (
	"context"
	"sync"
	"time"
)

// FixedDelayLimiter spaces requests at least FixedDelay apart.
type FixedDelayLimiter struct {
	mu          sync.Mutex
	delay       time.Duration
	lastRequest time.Time
	hold        pause
	config      Config
}

// NewFixedDelayLimiter creates a new fixed delay limiter.
func NewFixedDelayLimiter(cfg Config) *FixedDelayLimiter {
	cfg = applyDefaults(cfg)

	return &FixedDelayLimiter{
		delay:  cfg.FixedDelay,
		config: cfg,
	}
}

// Wait claims the next slot and sleeps until it starts.
func (fdl *FixedDelayLimiter) Wait(ctx context.Context) error {
	fdl.mu.Lock()
	now := time.Now()
	wait := fdl.next(now)
	fdl.lastRequest = now.Add(wait)
	fdl.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	return sleep(ctx, wait)
}

// Allow returns true if no wait is needed.
func (fdl *FixedDelayLimiter) Allow() bool {
	fdl.mu.Lock()
	defer fdl.mu.Unlock()

	now := time.Now()
	if fdl.next(now) > 0 {
		return false
	}
	fdl.lastRequest = now
	return true
}

// Reserve returns time to wait.
func (fdl *FixedDelayLimiter) Reserve() time.Duration {
	fdl.mu.Lock()
	defer fdl.mu.Unlock()
	return fdl.next(time.Now())
}

// RetryAfter returns exponential backoff duration.
func (fdl *FixedDelayLimiter) RetryAfter(attempt int) time.Duration {
	return CalculateBackoff(attempt, fdl.config)
}

// Pause holds back callers for d.
func (fdl *FixedDelayLimiter) Pause(d time.Duration) {
	fdl.mu.Lock()
	defer fdl.mu.Unlock()
	fdl.hold.extend(time.Now(), d)
}

// Reset forgets the last request and lifts any pause.
func (fdl *FixedDelayLimiter) Reset() {
	fdl.mu.Lock()
	defer fdl.mu.Unlock()
	fdl.lastRequest = time.Time{}
	fdl.hold.clear()
}

func (fdl *FixedDelayLimiter) next(now time.Time) time.Duration {
	wait := fdl.hold.remaining(now)
	if fdl.lastRequest.IsZero() {
		return wait
	}
	if d := fdl.delay - now.Sub(fdl.lastRequest); d > wait {
		wait = d
	}
	return wait
}
