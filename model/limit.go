package model

import (
	"context"

	"github.com/hupe1980/reviewmesh/core"
	"github.com/hupe1980/reviewmesh/logging"
)

// Limited wraps a Generator with a shared call budget. Once the budget is
// exhausted every call fails with core.ErrCallLimitExceeded, which agents
// treat like any other generation failure and answer with rule-based results.
type Limited struct {
	next    Generator
	limiter *core.CallLimiter
	logger  logging.Logger
}

// LimitOptions configure Limit.
type LimitOptions struct {
	Logger logging.Logger
}

// Limit returns g guarded by l. A nil limiter returns g unchanged.
func Limit(g Generator, l *core.CallLimiter, optFns ...func(o *LimitOptions)) Generator {
	if l == nil {
		return g
	}
	opts := LimitOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Limited{next: g, limiter: l, logger: logging.OrNoOp(opts.Logger)}
}

func (l *Limited) acquire(n int) error {
	if err := l.limiter.Acquire(n); err != nil {
		l.logger.Warn("Generation call budget exhausted", "requested", n, "used", l.limiter.Count(), "remaining", l.limiter.Remaining())
		return err
	}
	l.logger.Debug("Generation calls reserved", "requested", n, "remaining", l.limiter.Remaining())
	return nil
}

// Generate implements Generator.
func (l *Limited) Generate(ctx context.Context, prompt string) (string, error) {
	if err := l.acquire(1); err != nil {
		return "", err
	}
	return l.next.Generate(ctx, prompt)
}

// BatchGenerate implements Generator. A batch reserves one call per prompt.
func (l *Limited) BatchGenerate(ctx context.Context, prompts []string) ([]string, error) {
	if err := l.acquire(len(prompts)); err != nil {
		return nil, err
	}
	return l.next.BatchGenerate(ctx, prompts)
}

// Info implements Generator.
func (l *Limited) Info() Info { return l.next.Info() }
