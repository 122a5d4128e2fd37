package cache

import "time"

// RedisConfig describes the shared L2 store. Zero fields take the defaults below.
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	PoolSize    int
	Prefix      string
	DialTimeout time.Duration
}

func (c RedisConfig) withDefaults() RedisConfig {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 10
	}
	if c.Prefix == "" {
		c.Prefix = "signalfleet"
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	return c
}

// MemoryOption tunes a MemoryCache.
type MemoryOption func(*MemoryCache)

// WithMaxEntries bounds the cache; the least recently read entry is evicted first.
func WithMaxEntries(n int) MemoryOption {
	return func(mc *MemoryCache) { mc.maxSize = n }
}

func WithCleanupInterval(d time.Duration) MemoryOption {
	return func(mc *MemoryCache) { mc.cleanup = d }
}

// LayeredOption tunes a LayeredCache.
type LayeredOption func(*LayeredCache)

// WithL1 sizes the in-process layer. ttl caps how long L1 keeps an entry so
// that L2 expiry and writes from other replicas win eventually.
func WithL1(entries int, ttl time.Duration) LayeredOption {
	return func(lc *LayeredCache) {
		lc.l1Entries = entries
		lc.l1TTL = ttl
	}
}
