package ratelimit

import "time"

// Config holds rate limiter configuration for one provider API.
type Config struct {
	Strategy          Strategy      `koanf:"strategy" yaml:"strategy" json:"strategy" validate:"omitempty,oneof=token_bucket fixed_window fixed_delay"`
	RequestsPerSec    float64       `koanf:"requests_per_second" yaml:"requests_per_second" json:"requests_per_second" validate:"gte=0"`
	Burst             int           `koanf:"burst" yaml:"burst" json:"burst" validate:"gte=0"`
	FixedDelay        time.Duration `koanf:"fixed_delay" yaml:"fixed_delay" json:"fixed_delay"`
	MaxRetries        int           `koanf:"max_retries" yaml:"max_retries" json:"max_retries" validate:"gte=0"`
	InitialBackoff    time.Duration `koanf:"initial_backoff" yaml:"initial_backoff" json:"initial_backoff"`
	MaxBackoff        time.Duration `koanf:"max_backoff" yaml:"max_backoff" json:"max_backoff"`
	BackoffMultiplier float64       `koanf:"backoff_multiplier" yaml:"backoff_multiplier" json:"backoff_multiplier" validate:"gte=0"`
}

// DefaultConfig returns limits that stay inside the analytics APIs' per-project quotas.
func DefaultConfig() Config {
	return Config{
		Strategy:          StrategyTokenBucket,
		RequestsPerSec:    8.0,
		Burst:             10,
		FixedDelay:        200 * time.Millisecond,
		MaxRetries:        3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

func applyDefaults(cfg Config) Config {
	def := DefaultConfig()
	if cfg.Strategy == "" {
		cfg.Strategy = def.Strategy
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = def.RequestsPerSec
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if cfg.BackoffMultiplier <= 0 {
		cfg.BackoffMultiplier = def.BackoffMultiplier
	}
	if cfg.FixedDelay <= 0 {
		cfg.FixedDelay = def.FixedDelay
	}
	return cfg
}

// Set carries a default config plus per-API overrides, e.g. "admin" and "data".
type Set struct {
	Default   Config            `koanf:"default" yaml:"default" json:"default"`
	Overrides map[string]Config `koanf:"overrides" yaml:"overrides" json:"overrides"`
}

// For returns the effective config for the named API. Zero fields of an
// override fall back to the set default, then to DefaultConfig.
func (s Set) For(name string) Config {
	base := applyDefaults(s.Default)
	o, ok := s.Overrides[name]
	if !ok {
		return base
	}
	if o.Strategy == "" {
		o.Strategy = base.Strategy
	}
	if o.RequestsPerSec <= 0 {
		o.RequestsPerSec = base.RequestsPerSec
	}
	if o.Burst <= 0 {
		o.Burst = base.Burst
	}
	if o.FixedDelay <= 0 {
		o.FixedDelay = base.FixedDelay
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = base.MaxRetries
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = base.InitialBackoff
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = base.MaxBackoff
	}
	if o.BackoffMultiplier <= 0 {
		o.BackoffMultiplier = base.BackoffMultiplier
	}
	return o
}
