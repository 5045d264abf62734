package agent

import (
	"fmt"

	"github.com/hupe1980/reviewmesh/core"
	"github.com/hupe1980/reviewmesh/logging"
	"github.com/hupe1980/reviewmesh/model"
)

// DefaultIDs lists the built-in agents in their default run order.
var DefaultIDs = []string{CodeReviewerID, SecurityID, StyleID, CriticID}

// New returns a fresh rule-based agent for a built-in id.
func New(id string) (core.Agent, error) {
	switch id {
	case CodeReviewerID:
		return NewCodeReviewer(), nil
	case SecurityID:
		return NewSecurity(), nil
	case StyleID:
		return NewStyle(), nil
	case CriticID:
		return NewCritic(), nil
	default:
		return nil, fmt.Errorf("unknown agent %q", id)
	}
}

// Defaults returns the built-in rule-based agents in default order.
func Defaults() []core.Agent {
	agents := make([]core.Agent, 0, len(DefaultIDs))
	for _, id := range DefaultIDs {
		a, _ := New(id)
		agents = append(agents, a)
	}
	return agents
}

// BuildOptions selects and configures the agent set.
type BuildOptions struct {
	// Enabled lists agent ids in run order; empty means DefaultIDs.
	Enabled []string
	// Generative lists the ids wrapped with the generator. Ignored when
	// Generator is nil.
	Generative []string
	Generator  model.Generator
	Logger     logging.Logger
}

// Build assembles the configured agent set.
func Build(optFns ...func(o *BuildOptions)) ([]core.Agent, error) {
	opts := BuildOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	ids := opts.Enabled
	if len(ids) == 0 {
		ids = DefaultIDs
	}
	wrap := make(map[string]bool, len(opts.Generative))
	for _, id := range opts.Generative {
		wrap[id] = true
	}

	agents := make([]core.Agent, 0, len(ids))
	seen := map[string]bool{}
	for _, id := range ids {
		if seen[id] {
			return nil, fmt.Errorf("agent %q listed twice", id)
		}
		seen[id] = true

		a, err := New(id)
		if err != nil {
			return nil, err
		}
		if opts.Generator != nil && wrap[id] {
			a = NewGenerative(a, opts.Generator, func(o *GenerativeOptions) { o.Logger = opts.Logger })
		}
		agents = append(agents, a)
	}
	return agents, nil
}
