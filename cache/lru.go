package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LRU is a bounded in-process cache evicting the least recently used entry.
// It has no expiry.
type LRU struct {
	entries *lru.Cache[string, string]
}

// NewLRU creates an LRU holding at most capacity entries. Capacities below
// one are raised to one.
func NewLRU(capacity int) *LRU {
	if capacity < 1 {
		capacity = 1
	}
	// lru.New only fails for non-positive sizes.
	entries, _ := lru.New[string, string](capacity)
	return &LRU{entries: entries}
}

// Get returns the cached value and marks it as recently used.
func (c *LRU) Get(_ context.Context, key string) (string, bool) {
	return c.entries.Get(key)
}

// Set stores value, evicting the oldest entry when full.
func (c *LRU) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.entries.Add(key, value)
	return nil
}

// Len returns the number of cached entries.
func (c *LRU) Len() int { return c.entries.Len() }
