package tenant

// cache.go holds the set of pipeline keys seen in NL listings.
//
// Entries expire after a fixed TTL. Membership is only a fast path: the
// key marker is still checked when an entry is missing or expired, so a
// cold cache never changes a decision for keys that follow the marker
// convention.

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultKeyTTL is how long an observed NL pipeline key stays cached.
const DefaultKeyTTL = time.Hour

// KeyCache is an append-mostly set of pipeline keys with per-entry expiry.
// It is safe for concurrent use.
type KeyCache struct {
	ttl time.Duration
	now func() time.Time

	mu   sync.RWMutex
	keys map[string]time.Time // key -> expiry
}

// NewKeyCache creates a cache whose entries live for ttl.
// A non-positive ttl falls back to DefaultKeyTTL.
func NewKeyCache(ttl time.Duration) *KeyCache {
	if ttl <= 0 {
		ttl = DefaultKeyTTL
	}
	return &KeyCache{
		ttl:  ttl,
		now:  time.Now,
		keys: make(map[string]time.Time),
	}
}

// Add records keys, refreshing the expiry of keys already present.
func (c *KeyCache) Add(keys ...string) {
	if len(keys) == 0 {
		return
	}
	expires := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		if k == "" {
			continue
		}
		c.keys[k] = expires
	}
}

// Contains reports whether key is cached and not yet expired.
func (c *KeyCache) Contains(key string) bool {
	c.mu.RLock()
	expires, ok := c.keys[key]
	c.mu.RUnlock()
	return ok && c.now().Before(expires)
}

// Len returns the number of entries, including expired ones not yet swept.
func (c *KeyCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.keys)
}

// Sweep removes expired entries and returns how many were removed.
func (c *KeyCache) Sweep() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, expires := range c.keys {
		if !now.Before(expires) {
			delete(c.keys, k)
			removed++
		}
	}
	return removed
}

// StartSweeper removes expired entries every interval until ctx is cancelled.
func (c *KeyCache) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = c.ttl
	}
	slog.Info("nl key cache sweeper started", "interval", interval, "ttl", c.ttl)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("nl key cache sweeper stopped")
			return
		case <-ticker.C:
			if removed := c.Sweep(); removed > 0 {
				slog.Debug("swept nl key cache", "removed", removed, "remaining", c.Len())
			}
		}
	}
}
