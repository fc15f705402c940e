package llm

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"sync"
	"time"
)

type cacheEntry struct {
	value     string
	createdAt time.Time
	ttl       time.Duration
}

func (e cacheEntry) expired(now time.Time) bool {
	return now.Sub(e.createdAt) >= e.ttl
}

// Lookup results reported by ResponseCache.Get.
const (
	CacheHit     = "hit"
	CacheMiss    = "miss"
	CacheExpired = "expired"
)

// ResponseCache is a process-local TTL cache of successful responses.
// Expired entries are evicted lazily on lookup.
type ResponseCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewResponseCache creates a cache whose entries live for ttl.
func NewResponseCache(ttl time.Duration) *ResponseCache {
	return &ResponseCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (c *ResponseCache) WithClock(now func() time.Time) *ResponseCache {
	c.now = now
	return c
}

// Get returns a live entry and the lookup result.
func (c *ResponseCache) Get(key string) (string, string) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return "", CacheMiss
	}
	if entry.expired(c.now()) {
		c.mu.Lock()
		// re-check, another writer may have refreshed it
		if cur, ok := c.entries[key]; ok && cur.expired(c.now()) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return "", CacheExpired
	}
	return entry.value, CacheHit
}

// Set stores a value under key.
func (c *ResponseCache) Set(key, value string) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{value: value, createdAt: c.now(), ttl: c.ttl}
	c.mu.Unlock()
}

// Has reports whether key holds an entry, live or not.
func (c *ResponseCache) Has(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[key]
	return ok
}

// Len returns the number of stored entries, including expired ones not yet evicted.
func (c *ResponseCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// NormalizePrompt trims the prompt and collapses internal whitespace runs.
func NormalizePrompt(prompt string) string {
	return strings.Join(strings.Fields(prompt), " ")
}

// CacheKey derives the cache key for one request. An empty provider stands
// for the fallback chain.
func CacheKey(provider, prompt string, maxTokens int, temperature float32) string {
	h := sha256.New()
	h.Write([]byte(provider))
	h.Write([]byte{0})
	h.Write([]byte(NormalizePrompt(prompt)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(maxTokens)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatFloat(float64(temperature), 'f', -1, 32)))
	return hex.EncodeToString(h.Sum(nil))
}
