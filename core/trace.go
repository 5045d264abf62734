package core

import "time"

// AgentTrace records one agent run (or a synthesized orchestrator step).
type AgentTrace struct {
	AgentID       string    `json:"agent_id"`
	StartedAt     time.Time `json:"started_at"`
	CompletedAt   time.Time `json:"completed_at"`
	InputSummary  string    `json:"input_summary"`
	OutputSummary string    `json:"output_summary"`
}

// Duration returns the wall time covered by the trace.
func (t AgentTrace) Duration() time.Duration { return t.CompletedAt.Sub(t.StartedAt) }
