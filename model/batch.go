package model

import (
	"context"
	"errors"
	"fmt"

	"github.com/sourcegraph/conc/pool"
)

// DefaultBatchConcurrency bounds ParallelBatch when no limit is given.
const DefaultBatchConcurrency = 4

// GenerateFunc produces a completion for one prompt.
type GenerateFunc func(ctx context.Context, prompt string) (string, error)

// ParallelBatch runs fn for every prompt on a bounded goroutine pool and
// returns the outputs in prompt order. A failed item leaves an empty string
// at its position; the per-item errors are joined into the returned error.
func ParallelBatch(ctx context.Context, prompts []string, maxGoroutines int, fn GenerateFunc) ([]string, error) {
	if maxGoroutines <= 0 {
		maxGoroutines = DefaultBatchConcurrency
	}

	out := make([]string, len(prompts))
	errs := make([]error, len(prompts))

	p := pool.New().WithMaxGoroutines(maxGoroutines)
	for i, prompt := range prompts {
		p.Go(func() {
			text, err := fn(ctx, prompt)
			if err != nil {
				errs[i] = fmt.Errorf("prompt %d: %w", i, err)
				return
			}
			out[i] = text
		})
	}
	p.Wait()

	return out, errors.Join(errs...)
}
