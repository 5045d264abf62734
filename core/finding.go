package core

import "strings"

// Severity is the ordered impact level of a finding.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank returns the position of s in the ordering info < low < medium < high < critical.
// Unknown severities rank below info.
func (s Severity) Rank() int {
	switch s {
	case SeverityInfo:
		return 0
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return -1
	}
}

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool { return s.Rank() >= 0 }

// ParseSeverity normalizes free-form text (case and surrounding space
// insensitive) into a Severity.
func ParseSeverity(text string) (Severity, bool) {
	s := Severity(strings.ToLower(strings.TrimSpace(text)))
	if !s.Valid() {
		return "", false
	}
	return s, true
}

// MaxSeverity returns the higher of a and b, preferring a on ties.
func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// Finding is a single issue reported by an agent.
type Finding struct {
	FilePath    string   `json:"file_path"`
	LineNumber  int      `json:"line_number"`
	Severity    Severity `json:"severity"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Suggestion  string   `json:"suggestion"`
}

// FindingKey identifies findings that describe the same issue at the same
// location. Findings sharing a key collapse into one comment.
type FindingKey struct {
	FilePath    string
	LineNumber  int
	Description string
}

// Key derives the aggregation key of the finding.
func (f Finding) Key() FindingKey {
	return FindingKey{FilePath: f.FilePath, LineNumber: f.LineNumber, Description: f.Description}
}

// AgentFinding pairs a finding with the id of the agent that emitted it.
type AgentFinding struct {
	AgentID string `json:"agent_id"`
	Finding
}

// AggregatedComment is the deduplicated result of one or more findings that
// share a FindingKey. AgentID is the primary owner and always equals
// Contributors[0].
type AggregatedComment struct {
	Finding
	AgentID      string   `json:"agent_id"`
	Contributors []string `json:"contributors"`
}
