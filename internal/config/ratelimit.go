package config

import (
	"os"
	"strconv"
	"time"
)

// LoginRateConfig tunes the token bucket guarding the login endpoint.  The
// bucket is keyed per client IP so one hammering terminal cannot lock the
// whole floor out.  It complements, not replaces, the per-account lockout.
type LoginRateConfig struct {
	Enabled     bool
	Burst       int           // bucket capacity
	RefillEvery time.Duration // one token added per interval
	TTL         time.Duration // idle bucket expiry in Redis
	Prefix      string        // Redis key namespace
}

// LoadLoginRateConfig reads environment variables to build a LoginRateConfig.
// Defaults allow a short burst of attempts and then one per two seconds.
func LoadLoginRateConfig() LoginRateConfig {
	cfg := LoginRateConfig{
		Enabled:     envBool("LOGIN_RATE_ENABLED", true),
		Burst:       envInt("LOGIN_RATE_BURST", 10),
		RefillEvery: envDur("LOGIN_RATE_REFILL_EVERY", 2*time.Second),
		TTL:         envDur("LOGIN_RATE_TTL", 10*time.Minute),
		Prefix:      envStr("LOGIN_RATE_PREFIX", "rl:login"),
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	if cfg.RefillEvery <= 0 {
		cfg.RefillEvery = time.Second
	}
	if min := 5 * cfg.RefillEvery; cfg.TTL < min {
		cfg.TTL = min
	}
	return cfg
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	switch os.Getenv(k) {
	case "":
		return d
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
