package ratelimit

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// FixedWindow admits up to RequestsPerSec calls per one-second window.
type FixedWindow struct {
	mu          sync.Mutex
	limit       int
	window      time.Duration
	count       int
	windowStart time.Time
	hold        pause
	config      Config
}

// NewFixedWindow creates a new fixed window limiter.
func NewFixedWindow(cfg Config) *FixedWindow {
	cfg = applyDefaults(cfg)

	limit := int(cfg.RequestsPerSec)
	if limit < 1 {
		limit = 1
	}
	return &FixedWindow{
		limit:       limit,
		window:      time.Second,
		windowStart: time.Now(),
		config:      cfg,
	}
}

// Wait blocks until the request fits in a window or ctx is done.
func (fw *FixedWindow) Wait(ctx context.Context) error {
	for {
		fw.mu.Lock()
		wait := fw.take(time.Now())
		fw.mu.Unlock()

		if wait == 0 {
			return nil
		}
		// jitter keeps workers released by the same window from colliding
		if q := int64(wait) / 4; q > 0 {
			wait += time.Duration(rand.Int64N(q))
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Allow returns true if request can proceed.
func (fw *FixedWindow) Allow() bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.take(time.Now()) == 0
}

// Reserve returns wait time until next available slot.
func (fw *FixedWindow) Reserve() time.Duration {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	now := time.Now()
	if d := fw.hold.remaining(now); d > 0 {
		return d
	}
	fw.roll(now)
	if fw.count < fw.limit {
		return 0
	}
	return fw.window - now.Sub(fw.windowStart)
}

// RetryAfter returns exponential backoff duration.
func (fw *FixedWindow) RetryAfter(attempt int) time.Duration {
	return CalculateBackoff(attempt, fw.config)
}

// Pause holds back callers for d.
func (fw *FixedWindow) Pause(d time.Duration) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.hold.extend(time.Now(), d)
}

// Reset resets the window and lifts any pause.
func (fw *FixedWindow) Reset() {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	fw.count = 0
	fw.windowStart = time.Now()
	fw.hold.clear()
}

func (fw *FixedWindow) take(now time.Time) time.Duration {
	if d := fw.hold.remaining(now); d > 0 {
		return d
	}
	fw.roll(now)
	if fw.count < fw.limit {
		fw.count++
		return 0
	}
	if d := fw.window - now.Sub(fw.windowStart); d > 0 {
		return d
	}
	return time.Millisecond
}

func (fw *FixedWindow) roll(now time.Time) {
	if now.Sub(fw.windowStart) >= fw.window {
		fw.count = 0
		fw.windowStart = now
	}
}
