package revocation

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	defaultTTL             = 15 * time.Minute
	defaultCleanupInterval = time.Minute
)

// Config configures a Cache.
type Config struct {
	// DefaultTTL applies when MarkRevoked is called without a known expiry.
	DefaultTTL time.Duration
	// CleanupInterval is how often expired entries are swept.
	CleanupInterval time.Duration
	// Now overrides the clock used to turn expiry instants into TTLs.
	Now func() time.Time
}

// Cache is a concurrency-safe set of revoked token digests.
type Cache struct {
	entries    *gocache.Cache
	defaultTTL time.Duration
	now        func() time.Time
}

// New returns an empty Cache.
func New(cfg Config) *Cache {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = defaultTTL
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = defaultCleanupInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Cache{
		entries:    gocache.New(cfg.DefaultTTL, cfg.CleanupInterval),
		defaultTTL: cfg.DefaultTTL,
		now:        cfg.Now,
	}
}

// MarkRevoked records signed as revoked until expiresAt. A zero expiresAt
// uses the default TTL. Tokens already past expiry are not recorded since
// the codec rejects them anyway.
func (c *Cache) MarkRevoked(signed string, expiresAt time.Time) {
	ttl := c.defaultTTL
	if !expiresAt.IsZero() {
		// +1s keeps the entry through the final valid second.
		ttl = expiresAt.Sub(c.now()) + time.Second
		if ttl <= 0 {
			return
		}
	}
	c.entries.Set(key(signed), struct{}{}, ttl)
}

// IsRevoked reports whether signed was marked revoked and the entry is live.
func (c *Cache) IsRevoked(signed string) bool {
	_, ok := c.entries.Get(key(signed))
	return ok
}

// Len returns the number of entries, including expired ones not yet swept.
func (c *Cache) Len() int {
	return c.entries.ItemCount()
}

// Flush drops every entry. Used to simulate a fresh process.
func (c *Cache) Flush() {
	c.entries.Flush()
}

func key(signed string) string {
	sum := sha256.Sum256([]byte(signed))
	return hex.EncodeToString(sum[:])
}
