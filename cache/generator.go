package cache

import (
	"context"
	"time"

	"github.com/hupe1980/reviewmesh/logging"
	"github.com/hupe1980/reviewmesh/model"
)

// GeneratorOptions configures a caching generator.
type GeneratorOptions struct {
	TTL    time.Duration
	Logger logging.Logger
	// OnLookup observes every cache lookup.
	OnLookup func(ctx context.Context, hit bool)
}

// Generator consults a Cache before every generation call, including each
// prompt of a batch. Only misses reach the wrapped generator and only
// non-empty outputs are stored.
type Generator struct {
	next  model.Generator
	cache Cache
	opts  GeneratorOptions
}

// NewGenerator wraps next with c.
func NewGenerator(next model.Generator, c Cache, optFns ...func(o *GeneratorOptions)) *Generator {
	opts := GeneratorOptions{TTL: DefaultTTL}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	if c == nil {
		c = Nop{}
	}
	return &Generator{next: next, cache: c, opts: opts}
}

func (g *Generator) key(prompt string) string {
	info := g.next.Info()
	return Key(info.Name, info.Adapter, prompt)
}

func (g *Generator) lookup(ctx context.Context, key string) (string, bool) {
	v, ok := g.cache.Get(ctx, key)
	if g.opts.OnLookup != nil {
		g.opts.OnLookup(ctx, ok)
	}
	return v, ok
}

func (g *Generator) store(ctx context.Context, key, value string) {
	if value == "" {
		return
	}
	if err := g.cache.Set(ctx, key, value, g.opts.TTL); err != nil {
		g.opts.Logger.Warn("cache write failed", "error", err.Error())
	}
}

// Generate implements model.Generator.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	key := g.key(prompt)
	if v, ok := g.lookup(ctx, key); ok {
		return v, nil
	}
	out, err := g.next.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	g.store(ctx, key, out)
	return out, nil
}

// BatchGenerate implements model.Generator. Cached prompts are answered
// locally; the remaining ones go to the wrapped generator in one batch.
func (g *Generator) BatchGenerate(ctx context.Context, prompts []string) ([]string, error) {
	out := make([]string, len(prompts))
	keys := make([]string, len(prompts))

	var (
		missIdx     []int
		missPrompts []string
	)
	for i, p := range prompts {
		keys[i] = g.key(p)
		if v, ok := g.lookup(ctx, keys[i]); ok {
			out[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missPrompts = append(missPrompts, p)
	}

	if len(missPrompts) == 0 {
		return out, nil
	}

	fresh, err := g.next.BatchGenerate(ctx, missPrompts)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		if j >= len(fresh) {
			break
		}
		out[i] = fresh[j]
		g.store(ctx, keys[i], fresh[j])
	}

	return out, nil
}

// Info implements model.Generator.
func (g *Generator) Info() model.Info { return g.next.Info() }
