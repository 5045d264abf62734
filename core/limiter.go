package core

import (
	"errors"
	"fmt"
	"sync"
)

// ErrCallLimitExceeded is returned once a CallLimiter has been exhausted.
var ErrCallLimitExceeded = errors.New("call limit exceeded")

// CallLimiter enforces a maximum number of generation calls.
type CallLimiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewCallLimiter creates a new limiter with a max number of calls.
// If max == 0, unlimited calls are allowed.
func NewCallLimiter(max int) *CallLimiter {
	return &CallLimiter{max: max}
}

// Acquire reserves n calls and returns an error if the limit would be exceeded.
// A failed acquisition reserves nothing.
func (cl *CallLimiter) Acquire(n int) error {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.max > 0 && cl.count+n > cl.max {
		return fmt.Errorf("%w: %d", ErrCallLimitExceeded, cl.max)
	}

	cl.count += n

	return nil
}

// Count returns the current number of calls made.
func (cl *CallLimiter) Count() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	return cl.count
}

// Remaining returns how many calls are left before hitting the limit.
func (cl *CallLimiter) Remaining() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.max == 0 {
		return -1 // unlimited
	}

	return cl.max - cl.count
}
