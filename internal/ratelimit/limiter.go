package ratelimit

import (
	"context"
	"time"
)

// Limiter paces calls to a provider API. Implementations are safe for
// concurrent use, so a single limiter is shared by every sync worker.
type Limiter interface {
	Wait(ctx context.Context) error
	Allow() bool
	Reserve() time.Duration
	RetryAfter(attempt int) time.Duration
	// Pause holds back every caller for d, e.g. after a quota response.
	Pause(d time.Duration)
	Reset()
}

// Strategy defines the rate limiting strategy.
type Strategy string

const (
	StrategyTokenBucket Strategy = "token_bucket"
	StrategyFixedWindow Strategy = "fixed_window"
	StrategyFixedDelay  Strategy = "fixed_delay"
)

// NewLimiter creates a rate limiter based on config.
func NewLimiter(cfg Config) Limiter {
	cfg = applyDefaults(cfg)
	switch cfg.Strategy {
	case StrategyFixedWindow:
		return NewFixedWindow(cfg)
	case StrategyFixedDelay:
		return NewFixedDelayLimiter(cfg)
	default:
		return NewTokenBucket(cfg)
	}
}

// pause tracks a shared hold-off deadline. Callers guard it with their own mutex.
type pause struct {
	until time.Time
}

func (p *pause) extend(now time.Time, d time.Duration) {
	if d <= 0 {
		return
	}
	if t := now.Add(d); t.After(p.until) {
		p.until = t
	}
}

func (p *pause) remaining(now time.Time) time.Duration {
	if p.until.IsZero() || !p.until.After(now) {
		return 0
	}
	return p.until.Sub(now)
}

func (p *pause) clear() {
	p.until = time.Time{}
}

// sleep blocks for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
