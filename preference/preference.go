// Package preference derives (chosen, rejected) review pairs from the
// rule-based reviewers for preference-learning datasets.
package preference

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/hupe1980/reviewmesh/agent"
	"github.com/hupe1980/reviewmesh/core"
	"github.com/hupe1980/reviewmesh/logging"
	"github.com/hupe1980/reviewmesh/model"
)

// Candidate is one agent's rendered review and its severity score.
type Candidate struct {
	AgentID string `json:"agent_id" yaml:"agent_id"`
	Text    string `json:"text" yaml:"text"`
	Score   int    `json:"score" yaml:"score"`
}

// Pair is a preferred review and a rejected one.
type Pair struct {
	ReviewID      string `json:"review_id,omitempty" yaml:"review_id,omitempty"`
	Prompt        string `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	Chosen        string `json:"chosen" yaml:"chosen"`
	Rejected      string `json:"rejected" yaml:"rejected"`
	ChosenAgent   string `json:"chosen_agent" yaml:"chosen_agent"`
	RejectedAgent string `json:"rejected_agent" yaml:"rejected_agent"`
	// Ranker is "critic" when a generator picked the pair, "feedback" for
	// pairs built from human ratings, else "score".
	Ranker string `json:"ranker" yaml:"ranker"`
}

// Options configure Pairs.
type Options struct {
	// Generator, when set, is asked to rank the candidates through the
	// critic prompt. Its answer wins over the score ranking if it names two
	// known candidates.
	Generator model.Generator
	Logger    logging.Logger
	// Prompt is copied into every returned pair.
	Prompt string
}

// DefaultAgents returns the reviewers whose output is ranked.
func DefaultAgents() []core.Agent {
	return []core.Agent{agent.NewCodeReviewer(), agent.NewSecurity(), agent.NewStyle()}
}

// Candidates runs agents over changes and keeps those with findings.
func Candidates(ctx context.Context, changes []core.DiffChange, agents []core.Agent) []Candidate {
	out := []Candidate{}
	for _, a := range agents {
		findings := a.Analyze(ctx, changes, "")
		if len(findings) == 0 {
			continue
		}
		out = append(out, Candidate{AgentID: a.ID(), Text: Render(findings), Score: Score(findings)})
	}
	return out
}

// Pairs returns at most one pair: the best and worst scored candidates, or
// the critic's choice when a generator is configured. A nil agents slice
// selects DefaultAgents. Fewer than two candidates yield no pairs.
func Pairs(ctx context.Context, changes []core.DiffChange, agents []core.Agent, optFns ...func(o *Options)) []Pair {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	if agents == nil {
		agents = DefaultAgents()
	}

	candidates := Candidates(ctx, changes, agents)
	if len(candidates) < 2 {
		return []Pair{}
	}

	if opts.Generator != nil {
		if p, ok := criticPair(ctx, opts, changes, candidates); ok {
			p.Prompt = opts.Prompt
			return []Pair{p}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
	best, worst := candidates[0], candidates[len(candidates)-1]
	return []Pair{{
		Prompt:        opts.Prompt,
		Chosen:        best.Text,
		Rejected:      worst.Text,
		ChosenAgent:   best.AgentID,
		RejectedAgent: worst.AgentID,
		Ranker:        "score",
	}}
}

func criticPair(ctx context.Context, opts Options, changes []core.DiffChange, candidates []Candidate) (Pair, bool) {
	reviews := make([]string, len(candidates))
	byID := make(map[string]Candidate, len(candidates))
	for i, c := range candidates {
		reviews[i] = c.AgentID + ": " + c.Text
		byID[c.AgentID] = c
	}

	prompt, ok := agent.CriticPrompt(changes, strings.Join(reviews, "\n"))
	if !ok {
		return Pair{}, false
	}
	out, err := opts.Generator.Generate(ctx, prompt)
	if err != nil {
		opts.Logger.Warn("critic ranking failed, using scores", "error", err.Error())
		return Pair{}, false
	}

	preferred, rejected, ok := agent.ParseRanking(out)
	if !ok || preferred == rejected {
		return Pair{}, false
	}
	chosen, okChosen := byID[preferred]
	lost, okLost := byID[rejected]
	if !okChosen || !okLost {
		opts.Logger.Debug("critic named unknown agents", "preferred", preferred, "rejected", rejected)
		return Pair{}, false
	}
	return Pair{
		Chosen:        chosen.Text,
		Rejected:      lost.Text,
		ChosenAgent:   chosen.AgentID,
		RejectedAgent: lost.AgentID,
		Ranker:        "critic",
	}, true
}

// Score sums severity ranks (info=0 ... critical=4); unknown severities count 0.
func Score(findings []core.Finding) int {
	total := 0
	for _, f := range findings {
		if r := f.Severity.Rank(); r > 0 {
			total += r
		}
	}
	return total
}

// Render formats findings one per line as "- [severity] path:line description".
// Unknown line numbers are shown as "?".
func Render(findings []core.Finding) string {
	lines := make([]string, len(findings))
	for i, f := range findings {
		line := "?"
		if f.LineNumber > 0 {
			line = fmt.Sprint(f.LineNumber)
		}
		lines[i] = fmt.Sprintf("- [%s] %s:%s %s", f.Severity, f.FilePath, line, f.Description)
	}
	return strings.Join(lines, "\n")
}
