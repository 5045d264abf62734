// Package cache memoizes generation output keyed by model, adapter and prompt.
//
// Backends are best effort: a failed lookup is a miss and a failed write is
// reported but never aborts a review.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// DefaultTTL is applied by backends that support expiry when no TTL is given.
const DefaultTTL = time.Hour

// Cache stores generation output.
type Cache interface {
	// Get returns the cached value; any backend failure is reported as a miss.
	Get(ctx context.Context, key string) (string, bool)
	// Set stores value under key. Backends without expiry ignore ttl.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Key derives the cache key for a prompt sent to model with adapter.
// Format: "<model>:<adapter>:<sha256 hex of prompt>".
func Key(model, adapter, prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return fmt.Sprintf("%s:%s:%s", model, adapter, hex.EncodeToString(sum[:]))
}

// Nop never stores anything.
type Nop struct{}

// Get always misses.
func (Nop) Get(context.Context, string) (string, bool) { return "", false }

// Set discards the value.
func (Nop) Set(context.Context, string, string, time.Duration) error { return nil }
