package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"etfhistory/internal/instrument"
	"etfhistory/internal/provider"
)

// entry stores one adapter answer (NONE included) with its expiry.
type entry struct {
	expiresAt time.Time
	resolved  instrument.Resolved
	ok        bool
}

// Adapter memoises an adapter per query for a TTL. Concurrent lookups of
// the same query share one upstream call.
type Adapter struct {
	A        provider.Adapter
	TTL      time.Duration
	MaxItems int

	mu    sync.RWMutex
	items map[string]entry
	group singleflight.Group
}

func (c *Adapter) Name() string { return c.A.Name() }

type result struct {
	resolved instrument.Resolved
	ok       bool
}

// Resolve returns the cached answer when still valid.
func (c *Adapter) Resolve(ctx context.Context, q instrument.Query) (instrument.Resolved, bool) {
	if c.TTL <= 0 {
		return c.A.Resolve(ctx, q)
	}
	key := strings.ToUpper(q.RawIdentifier) + "\x00" + q.DisplayName

	now := time.Now()
	c.mu.RLock()
	e, hit := c.items[key]
	c.mu.RUnlock()
	if hit && now.Before(e.expiresAt) {
		return e.resolved, e.ok
	}

	v, _, _ := c.group.Do(key, func() (any, error) {
		r, ok := c.A.Resolve(ctx, q)
		// a canceled lookup says nothing about the source
		if ctx.Err() == nil {
			c.store(key, entry{expiresAt: time.Now().Add(c.TTL), resolved: r, ok: ok})
		}
		return result{resolved: r, ok: ok}, nil
	})
	res := v.(result)
	return res.resolved, res.ok
}

func (c *Adapter) store(key string, e entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.items == nil {
		c.items = make(map[string]entry)
	}
	c.items[key] = e
	// best-effort cap cache size
	if c.MaxItems > 0 && len(c.items) > c.MaxItems {
		now := time.Now()
		// remove expired first, then arbitrary
		for k, v := range c.items {
			if now.After(v.expiresAt) {
				delete(c.items, k)
			}
		}
		for k := range c.items {
			if len(c.items) <= c.MaxItems {
				break
			}
			if k != key {
				delete(c.items, k)
			}
		}
	}
}

// Len reports the number of cached answers.
func (c *Adapter) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
