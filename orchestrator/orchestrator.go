// Package orchestrator runs a configured set of review agents over a change
// set and collects their findings and execution traces.
//
// Two interchangeable modes exist. Sequential calls each agent's Analyze in
// order. Batched collects one prompt per generation-backed agent, submits
// them in a single BatchGenerate call and parses each agent's slice of the
// output, re-running an agent's rules when its slice is unusable. Both modes
// isolate agent failures: a panicking agent contributes no findings and the
// remaining agents still run.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/reviewmesh/core"
	"github.com/hupe1980/reviewmesh/logging"
	"github.com/hupe1980/reviewmesh/model"
)

// Mode selects how agents are executed.
type Mode string

const (
	ModeSequential Mode = "sequential"
	ModeBatched    Mode = "batched"
)

// ParseMode validates a configuration value. Empty selects ModeSequential.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeSequential:
		return ModeSequential, nil
	case ModeBatched:
		return ModeBatched, nil
	default:
		return "", fmt.Errorf("unknown orchestrator mode %q", s)
	}
}

// Run paths reported to Options.OnAgentRun.
const (
	PathAnalyze    = "analyze"
	PathGeneration = "generation"
	PathRules      = "rules"
)

// OrchestratorAgentID names traces synthesized when no agent ran.
const OrchestratorAgentID = "orchestrator"

// Options configures an Orchestrator.
type Options struct {
	Mode Mode
	// Generator serves batched mode. Without one, batched mode behaves as sequential.
	Generator model.Generator
	Logger    logging.Logger
	// OnAgentRun observes every agent execution.
	OnAgentRun func(ctx context.Context, agentID, path string, dur time.Duration)
	// Now is the trace clock.
	Now func() time.Time
}

// Result holds the raw output of one run.
type Result struct {
	Findings []core.AgentFinding
	Traces   []core.AgentTrace
}

// Orchestrator runs agents in their configured order.
type Orchestrator struct {
	agents []core.Agent
	opts   Options
}

// New creates an Orchestrator over agents.
func New(agents []core.Agent, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{Mode: ModeSequential, Now: time.Now}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{agents: append([]core.Agent(nil), agents...), opts: opts}
}

// Agents returns the configured agents in run order.
func (o *Orchestrator) Agents() []core.Agent { return append([]core.Agent(nil), o.agents...) }

// Run executes all agents. Findings keep agent order and, within an agent,
// emission order. The result always carries at least one trace: when there
// are no changes or no agents, no agent runs and a single orchestrator
// trace is synthesized.
func (o *Orchestrator) Run(ctx context.Context, changes []core.DiffChange, repoContext string) Result {
	res := Result{Findings: []core.AgentFinding{}, Traces: []core.AgentTrace{}}

	if len(changes) > 0 && len(o.agents) > 0 {
		if o.opts.Mode == ModeBatched && o.opts.Generator != nil {
			o.runBatched(ctx, changes, repoContext, &res)
		} else {
			o.runSequential(ctx, changes, repoContext, &res)
		}
	}

	if len(res.Traces) == 0 {
		now := o.opts.Now()
		res.Traces = append(res.Traces, core.AgentTrace{
			AgentID:       OrchestratorAgentID,
			StartedAt:     now,
			CompletedAt:   now,
			InputSummary:  fmt.Sprintf("%d diff changes parsed", len(changes)),
			OutputSummary: fmt.Sprintf("%d findings", len(res.Findings)),
		})
	}

	return res
}

func (o *Orchestrator) runSequential(ctx context.Context, changes []core.DiffChange, repoContext string, res *Result) {
	for _, a := range o.agents {
		start := o.opts.Now()
		findings, err := safely(func() []core.Finding { return a.Analyze(ctx, changes, repoContext) })
		o.record(ctx, res, a.ID(), PathAnalyze, start, len(changes), findings, err)
	}
}

func (o *Orchestrator) runBatched(ctx context.Context, changes []core.DiffChange, repoContext string, res *Result) {
	// slot[i] is the index of agent i's prompt, or -1 when it does not prompt.
	slot := make([]int, len(o.agents))
	var prompts []string
	for i, a := range o.agents {
		slot[i] = -1
		pa, ok := a.(core.PromptingAgent)
		if !ok {
			continue
		}
		prompt, ok, err := safePrompt(pa, changes, repoContext)
		if err != nil {
			logging.ForAgent(o.opts.Logger, a.ID()).Warn("prompt build failed", "error", err.Error())
			continue
		}
		if ok {
			slot[i] = len(prompts)
			prompts = append(prompts, prompt)
		}
	}

	batchStart := o.opts.Now()
	var outputs []string
	if len(prompts) > 0 {
		var err error
		outputs, err = o.opts.Generator.BatchGenerate(ctx, prompts)
		logging.LogGeneration(o.opts.Logger, o.opts.Generator.Info().Name, len(prompts), o.opts.Now().Sub(batchStart), err)
		if err != nil {
			outputs = nil
		}
	}

	for i, a := range o.agents {
		if slot[i] < 0 {
			start := o.opts.Now()
			var findings []core.Finding
			var err error
			if pa, ok := a.(core.PromptingAgent); ok {
				findings, err = safely(func() []core.Finding { return pa.AnalyzeRules(ctx, changes, repoContext) })
			} else {
				findings, err = safely(func() []core.Finding { return a.Analyze(ctx, changes, repoContext) })
			}
			o.record(ctx, res, a.ID(), PathAnalyze, start, len(changes), findings, err)
			continue
		}

		pa := a.(core.PromptingAgent)
		out := ""
		if slot[i] < len(outputs) {
			out = outputs[slot[i]]
		}

		findings, err := safely(func() []core.Finding { return pa.ParseFindings(out) })
		path := PathGeneration
		if err != nil || len(findings) == 0 {
			path = PathRules
			findings, err = safely(func() []core.Finding { return pa.AnalyzeRules(ctx, changes, repoContext) })
		}
		o.record(ctx, res, a.ID(), path, batchStart, len(changes), findings, err)
	}
}

func (o *Orchestrator) record(ctx context.Context, res *Result, agentID, path string, start time.Time, inputs int, findings []core.Finding, err error) {
	end := o.opts.Now()
	log := logging.ForAgent(o.opts.Logger, agentID)

	output := fmt.Sprintf("%d findings", len(findings))
	if err != nil {
		findings = nil
		output = fmt.Sprintf("0 findings (failed: %v)", err)
		log.Error("agent failed", "error", err.Error())
	} else if path == PathRules {
		output += " (rules fallback)"
	}

	for _, f := range findings {
		res.Findings = append(res.Findings, core.AgentFinding{AgentID: agentID, Finding: f})
	}
	res.Traces = append(res.Traces, core.AgentTrace{
		AgentID:       agentID,
		StartedAt:     start,
		CompletedAt:   end,
		InputSummary:  fmt.Sprintf("%d diff changes", inputs),
		OutputSummary: output,
	})

	logging.LogAgentRun(log, len(findings), end.Sub(start), path == PathRules)
	if o.opts.OnAgentRun != nil {
		o.opts.OnAgentRun(ctx, agentID, path, end.Sub(start))
	}
}

// safely runs fn and converts a panic into an error.
func safely(fn func() []core.Finding) (findings []core.Finding, err error) {
	defer func() {
		if r := recover(); r != nil {
			findings, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(), nil
}

func safePrompt(pa core.PromptingAgent, changes []core.DiffChange, repoContext string) (prompt string, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			prompt, ok, err = "", false, fmt.Errorf("panic: %v", r)
		}
	}()
	prompt, ok = pa.BuildPrompt(changes, repoContext)
	return prompt, ok, nil
}
