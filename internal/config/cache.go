package config

import "time"

// MenuCacheConfig controls the Redis response cache in front of the public
// menu endpoints.  Only GET responses are cached; writes to the menu go
// through authenticated routes that bypass the cache entirely.
type MenuCacheConfig struct {
	Enabled      bool
	TTL          time.Duration
	Prefix       string
	MaxBodyBytes int // responses larger than this are served but not stored
}

// LoadMenuCacheConfig reads environment variables to build a MenuCacheConfig.
func LoadMenuCacheConfig() MenuCacheConfig {
	return MenuCacheConfig{
		Enabled:      envBool("MENU_CACHE_ENABLED", true),
		TTL:          envDur("MENU_CACHE_TTL", 30*time.Second),
		Prefix:       envStr("MENU_CACHE_PREFIX", "cache:menu"),
		MaxBodyBytes: envInt("MENU_CACHE_MAX_BODY_BYTES", 1<<20),
	}
}
