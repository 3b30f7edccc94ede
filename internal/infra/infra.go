// Package infra provides shared infrastructure components used across
// the application: caching, rate limiting, request collapsing, and HTTP utilities.
package infra

import (
	"context"
	"sync"
	"time"

	"github.com/zeromicro/go-zero/core/syncx"
)

// --- Simple in-memory cache ---

// CacheEntry holds a cached value with expiration.
type CacheEntry struct {
	Value     any
	ExpiresAt time.Time
}

// Cache is a simple thread-safe in-memory cache with TTL.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]CacheEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewCache creates a new cache with the given default TTL.
func NewCache(ttl time.Duration) *Cache {
	return NewCacheWithClock(ttl, time.Now)
}

// NewCacheWithClock creates a cache that reads the current time from now.
// Tests use it to move through freshness windows without sleeping.
func NewCacheWithClock(ttl time.Duration, now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{
		entries: make(map[string]CacheEntry),
		ttl:     ttl,
		now:     now,
	}
}

// TTL returns the default freshness window.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Get retrieves a value from the cache. Returns nil, false if not found or expired.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || !c.now().Before(entry.ExpiresAt) {
		return nil, false
	}
	return entry.Value, true
}

// Set stores a value in the cache with the default TTL.
func (c *Cache) Set(key string, value any) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores a value in the cache with a custom TTL.
func (c *Cache) SetWithTTL(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = CacheEntry{
		Value:     value,
		ExpiresAt: c.now().Add(ttl),
	}
	c.mu.Unlock()
}

// Invalidate removes a key from the cache.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Flush removes all entries from the cache.
func (c *Cache) Flush() {
	c.mu.Lock()
	c.entries = make(map[string]CacheEntry)
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Cleanup removes expired entries. Can be called periodically.
func (c *Cache) Cleanup() {
	c.mu.Lock()
	now := c.now()
	for k, v := range c.entries {
		if !now.Before(v.ExpiresAt) {
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()
}

// --- Rate limiter ---

// RateLimiter provides simple token-bucket rate limiting.
type RateLimiter struct {
	mu         sync.Mutex
	tokens     int
	maxTokens  int
	refillRate time.Duration
	lastRefill time.Time
}

// NewRateLimiter creates a rate limiter that holds up to maxTokens requests
// and regains one token per refillRate.
func NewRateLimiter(maxTokens int, refillRate time.Duration) *RateLimiter {
	if maxTokens < 1 {
		maxTokens = 1
	}
	if refillRate <= 0 {
		refillRate = time.Second
	}
	return &RateLimiter{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Wait blocks until a token is available or context is cancelled.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		rl.mu.Lock()
		rl.refill()
		if rl.tokens > 0 {
			rl.tokens--
			rl.mu.Unlock()
			return nil
		}
		rl.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// refill adds tokens based on elapsed time. Must be called with mu held.
func (rl *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(rl.lastRefill)
	if elapsed >= rl.refillRate {
		periods := int(elapsed / rl.refillRate)
		rl.tokens += periods
		if rl.tokens > rl.maxTokens {
			rl.tokens = rl.maxTokens
		}
		rl.lastRefill = rl.lastRefill.Add(time.Duration(periods) * rl.refillRate)
	}
}

// --- Request collapsing ---

// DefaultLoadTimeout bounds a shared load once it runs detached from its callers.
const DefaultLoadTimeout = 30 * time.Second

// Flight collapses concurrent calls for the same key into one execution.
type Flight struct {
	group syncx.SingleFlight
}

// NewFlight creates an empty Flight.
func NewFlight() *Flight {
	return &Flight{group: syncx.NewSingleFlight()}
}

// Do runs fn once per key among concurrent callers. shared reports whether
// the value was produced by another caller's execution.
func (f *Flight) Do(key string, fn func() (any, error)) (val any, shared bool, err error) {
	val, fresh, err := f.group.DoEx(key, fn)
	return val, !fresh, err
}

// DoContext is Do for loads shared between requests. fn runs on a copy of
// ctx that ignores cancellation and is bounded by timeout instead, so a
// caller leaving early does not fail the load for the others. Each caller
// still returns as soon as its own ctx is done.
func (f *Flight) DoContext(ctx context.Context, key string, timeout time.Duration, fn func(ctx context.Context) (any, error)) (val any, shared bool, err error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if timeout <= 0 {
		timeout = DefaultLoadTimeout
	}
	detached := context.WithoutCancel(ctx)

	type result struct {
		val    any
		shared bool
		err    error
	}
	done := make(chan result, 1)
	go func() {
		v, shared, err := f.Do(key, func() (any, error) {
			lctx, cancel := context.WithTimeout(detached, timeout)
			defer cancel()
			return fn(lctx)
		})
		done <- result{v, shared, err}
	}()

	select {
	case r := <-done:
		return r.val, r.shared, r.err
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}
