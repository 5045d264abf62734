package core

import "context"

// Agent analyzes a set of diff changes and reports findings.
//
// Analyze never returns an error: implementations degrade to whatever
// partial result they can produce and an agent with nothing to say returns
// an empty slice.
type Agent interface {
	// ID is the stable identifier recorded on findings and traces.
	ID() string
	Name() string
	Description() string
	Analyze(ctx context.Context, changes []DiffChange, repoContext string) []Finding
}

// PromptingAgent is an Agent whose generation step can be split out so an
// orchestrator can batch the prompts of several agents into one call.
type PromptingAgent interface {
	Agent
	// BuildPrompt returns the generation prompt, or false when the agent
	// does not use generation for this input.
	BuildPrompt(changes []DiffChange, repoContext string) (string, bool)
	// ParseFindings converts raw generation output into findings. Output
	// that cannot be parsed yields no findings.
	ParseFindings(output string) []Finding
	// AnalyzeRules runs the rule-based analysis only.
	AnalyzeRules(ctx context.Context, changes []DiffChange, repoContext string) []Finding
}
