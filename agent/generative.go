package agent

import (
	"context"
	"time"

	"github.com/hupe1980/reviewmesh/core"
	"github.com/hupe1980/reviewmesh/logging"
	"github.com/hupe1980/reviewmesh/model"
)

// GenerativeOptions configures a Generative agent.
type GenerativeOptions struct {
	// Prompt builds the generation prompt; defaults to DefaultPrompt(base).
	Prompt PromptFunc
	Logger logging.Logger
}

// Generative augments a rule-based agent with model generation. It is
// always safe to call: when the prompt is declined, the call fails, panics,
// or the output holds no usable findings, the wrapped agent's own result is
// returned instead.
type Generative struct {
	base core.Agent
	gen  model.Generator
	opts GenerativeOptions
}

// NewGenerative wraps base with gen.
func NewGenerative(base core.Agent, gen model.Generator, optFns ...func(o *GenerativeOptions)) *Generative {
	opts := GenerativeOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Prompt == nil {
		opts.Prompt = DefaultPrompt(base)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	return &Generative{base: base, gen: gen, opts: opts}
}

// ID implements core.Agent.
func (g *Generative) ID() string { return g.base.ID() }

// Name implements core.Agent.
func (g *Generative) Name() string { return g.base.Name() }

// Description implements core.Agent.
func (g *Generative) Description() string { return g.base.Description() }

// BuildPrompt implements core.PromptingAgent.
func (g *Generative) BuildPrompt(changes []core.DiffChange, repoContext string) (string, bool) {
	return g.opts.Prompt(changes, repoContext)
}

// ParseFindings implements core.PromptingAgent.
func (g *Generative) ParseFindings(output string) []core.Finding {
	return ParseFindings(output)
}

// AnalyzeRules implements core.PromptingAgent.
func (g *Generative) AnalyzeRules(ctx context.Context, changes []core.DiffChange, repoContext string) []core.Finding {
	return g.base.Analyze(ctx, changes, repoContext)
}

// Analyze implements core.Agent.
func (g *Generative) Analyze(ctx context.Context, changes []core.DiffChange, repoContext string) (findings []core.Finding) {
	prompt, ok := g.BuildPrompt(changes, repoContext)
	if !ok {
		return g.AnalyzeRules(ctx, changes, repoContext)
	}

	defer func() {
		if r := recover(); r != nil {
			g.opts.Logger.Error("generation panicked", "agent", g.ID(), "panic", r)
			findings = g.AnalyzeRules(ctx, changes, repoContext)
		}
	}()

	start := time.Now()
	out, err := g.gen.Generate(ctx, prompt)
	logging.LogGeneration(g.opts.Logger, g.gen.Info().Name, 1, time.Since(start), err)
	if err != nil {
		return g.AnalyzeRules(ctx, changes, repoContext)
	}

	if parsed := g.ParseFindings(out); len(parsed) > 0 {
		return parsed
	}

	g.opts.Logger.Debug("generation yielded no findings, using rules", "agent", g.ID())

	return g.AnalyzeRules(ctx, changes, repoContext)
}

// Unwrap returns the wrapped rule-based agent.
func (g *Generative) Unwrap() core.Agent { return g.base }
