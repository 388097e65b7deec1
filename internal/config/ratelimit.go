package config

import "time"

// RateLimitConfig controls the fixed-window limiter applied to the
// auth endpoints. Limit requests are allowed per Window per client
// key (IP + route). Kept deliberately coarse: its job is slowing
// credential stuffing, not traffic shaping.
type RateLimitConfig struct {
	Enabled bool
	Limit   int
	Window  time.Duration
	Prefix  string
}

// LoadRateLimitConfig reads environment variables to build a
// RateLimitConfig, with defaults suitable for the auth surface.
func LoadRateLimitConfig() RateLimitConfig {
	cfg := RateLimitConfig{
		Enabled: envBool("RATE_LIMIT_ENABLED", true),
		Limit:   envInt("RATE_LIMIT_LIMIT", 30),
		Window:  envDur("RATE_LIMIT_WINDOW", time.Minute),
		Prefix:  envStr("RATE_LIMIT_PREFIX", "rl"),
	}
	if cfg.Limit < 1 {
		cfg.Limit = 1
	}
	// The limiter buckets time by whole seconds of the window, so
	// anything below one second would divide by zero.
	if cfg.Window < time.Second {
		cfg.Window = time.Minute
	}
	return cfg
}
