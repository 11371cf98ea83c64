// Package cache shields callers from the scrape pipeline's latency: a
// catalog scrape takes tens of seconds and one Chrome process, so the last
// good listing is served while refreshes happen at most once per key.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hazyhaar/coursewatch/catalog"
)

// CatalogKey is the cache key for the full course listing.
const CatalogKey = "courses_data"

// Loader produces a fresh payload for a key.
type Loader func(ctx context.Context, key string) ([]catalog.Offering, error)

type entry struct {
	payload   []catalog.Offering
	fetchedAt time.Time
}

// Cache is a TTL cache with single-flight refresh and stale-serve-on-failure.
//
// Reads never block on a refresh once a value exists: a stale entry is
// returned immediately and one background refresh is kicked for that key.
// A failed refresh leaves the previous payload untouched — availability is
// preferred over freshness. Entries are never evicted; they die with the
// process.
type Cache struct {
	ttl         time.Duration
	loadTimeout time.Duration
	loader      Loader
	logger      *slog.Logger
	now         func() time.Time
	baseCtx     context.Context

	group   singleflight.Group
	mu      sync.RWMutex
	entries map[string]*entry
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// WithLoadTimeout bounds a single loader invocation. Default: 5 minutes.
func WithLoadTimeout(d time.Duration) Option {
	return func(c *Cache) { c.loadTimeout = d }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithBaseContext parents every loader invocation, so cancelling it (e.g.
// on process shutdown) tears down in-flight refreshes and their browser
// sessions. Default: context.Background().
func WithBaseContext(ctx context.Context) Option {
	return func(c *Cache) { c.baseCtx = ctx }
}

// New creates a Cache. ttl <= 0 defaults to one hour.
func New(ttl time.Duration, loader Loader, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	c := &Cache{
		ttl:         ttl,
		loadTimeout: 5 * time.Minute,
		loader:      loader,
		logger:      slog.Default(),
		now:         time.Now,
		baseCtx:     context.Background(),
		entries:     make(map[string]*entry),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get returns the payload for key.
//
// Fresh entry: returned as-is. Stale entry: returned immediately while at
// most one background refresh runs for the key. No entry: the caller waits
// for a synchronous load, shared with any concurrent cold callers.
func (c *Cache) Get(ctx context.Context, key string) ([]catalog.Offering, error) {
	c.mu.RLock()
	e := c.entries[key]
	c.mu.RUnlock()

	if e != nil {
		if c.now().Sub(e.fetchedAt) < c.ttl {
			return e.payload, nil
		}
		c.refreshAsync(key)
		return e.payload, nil
	}

	ch := c.group.DoChan(key, func() (any, error) { return c.load(key) })
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("cache: load %q: %w", key, res.Err)
		}
		return res.Val.([]catalog.Offering), nil
	}
}

// peek returns the current payload without triggering any refresh.
func (c *Cache) peek(key string) ([]catalog.Offering, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e := c.entries[key]
	if e == nil {
		return nil, false
	}
	return e.payload, true
}

// refreshAsync kicks a background refresh for key. Concurrent kicks for the
// same key collapse into the one in-flight load.
func (c *Cache) refreshAsync(key string) {
	ch := c.group.DoChan(key, func() (any, error) { return c.load(key) })
	go func() {
		if res := <-ch; res.Err != nil {
			// Stale-serve fallback: callers already got the old
			// payload, which stays in place.
			c.logger.Warn("cache: refresh failed, serving stale",
				"key", key, "error", res.Err)
		}
	}()
}

// load runs the loader under its own timeout and, on success, replaces the
// entry wholesale and resets the TTL clock. The loader deliberately does
// not inherit any caller context: a shared load must not die with the first
// caller that gives up. It descends from the base context instead, so only
// shutdown cancels it.
func (c *Cache) load(key string) ([]catalog.Offering, error) {
	ctx, cancel := context.WithTimeout(c.baseCtx, c.loadTimeout)
	defer cancel()

	payload, err := c.loader(ctx, key)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = &entry{payload: payload, fetchedAt: c.now()}
	c.mu.Unlock()
	return payload, nil
}
