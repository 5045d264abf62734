package agent

import (
	"context"
	"strings"

	"github.com/hupe1980/reviewmesh/core"
)

// Agent identifiers.
const (
	CodeReviewerID = "code_reviewer"
	SecurityID     = "security_reviewer"
	StyleID        = "style_reviewer"
	CriticID       = "critic"
)

// MaxLineLength is the longest changed line Style accepts.
const MaxLineLength = 120

func finding(c core.DiffChange, sev core.Severity, category, description, suggestion string) core.Finding {
	return core.Finding{
		FilePath:    c.FilePath,
		LineNumber:  c.LineNumber,
		Severity:    sev,
		Category:    category,
		Description: description,
		Suggestion:  suggestion,
	}
}

// CodeReviewer flags maintainability issues in changed lines.
type CodeReviewer struct {
	BaseAgent
}

// NewCodeReviewer creates the code_reviewer agent.
func NewCodeReviewer() *CodeReviewer {
	a := &CodeReviewer{BaseAgent: NewBaseAgent(CodeReviewerID, "Code Reviewer")}
	a.SetDescription("High-level review for logic and maintainability.")
	return a
}

// Analyze reports TODO/FIXME markers, or debug output when no marker is present.
func (a *CodeReviewer) Analyze(_ context.Context, changes []core.DiffChange, _ string) []core.Finding {
	findings := []core.Finding{}
	for _, c := range changes {
		content := strings.TrimSpace(c.Content)
		switch {
		case strings.Contains(content, "TODO") || strings.Contains(content, "FIXME"):
			findings = append(findings, finding(c, core.SeverityMedium, "maintainability",
				"TODO/FIXME left in changed code.",
				"Resolve the TODO or add a follow-up issue link."))
		case strings.Contains(content, "print(") || strings.Contains(content, "console.log"):
			findings = append(findings, finding(c, core.SeverityLow, "logging",
				"Debug output introduced in diff.",
				"Remove debug logging or gate it behind a flag."))
		}
	}
	return findings
}

// Security flags secrets and dynamic code execution. Matching is case-insensitive.
type Security struct {
	BaseAgent
}

// NewSecurity creates the security_reviewer agent.
func NewSecurity() *Security {
	a := &Security{BaseAgent: NewBaseAgent(SecurityID, "Security Reviewer")}
	a.SetDescription("Looks for security and safety issues.")
	return a
}

// Analyze may report two findings for the same line.
func (a *Security) Analyze(_ context.Context, changes []core.DiffChange, _ string) []core.Finding {
	findings := []core.Finding{}
	for _, c := range changes {
		upper := strings.ToUpper(c.Content)
		if containsAny(upper, "PASSWORD", "SECRET", "TOKEN") {
			findings = append(findings, finding(c, core.SeverityHigh, "secrets",
				"Potential secret material introduced.",
				"Move secrets to environment variables or a secret manager."))
		}
		if containsAny(upper, "EVAL(", "EXEC(") {
			findings = append(findings, finding(c, core.SeverityHigh, "code_injection",
				"Dynamic code execution detected.",
				"Avoid dynamic execution or sanitize input thoroughly."))
		}
	}
	return findings
}

// Style flags formatting issues.
type Style struct {
	BaseAgent
}

// NewStyle creates the style_reviewer agent.
func NewStyle() *Style {
	a := &Style{BaseAgent: NewBaseAgent(StyleID, "Style Reviewer")}
	a.SetDescription("Checks conventions and formatting.")
	return a
}

// Analyze reports tab characters and lines longer than MaxLineLength.
func (a *Style) Analyze(_ context.Context, changes []core.DiffChange, _ string) []core.Finding {
	findings := []core.Finding{}
	for _, c := range changes {
		if strings.Contains(c.Content, "\t") {
			findings = append(findings, finding(c, core.SeverityLow, "style",
				"Tab character found in change.",
				"Use spaces to match the project formatting."))
		}
		if len(c.Content) > MaxLineLength {
			findings = append(findings, finding(c, core.SeverityLow, "style",
				"Line exceeds 120 characters.",
				"Consider wrapping the line for readability."))
		}
	}
	return findings
}

// Critic ranks feedback for preference learning. Without a generator it
// emits a single placeholder record so preference export always has data.
type Critic struct {
	BaseAgent
}

// NewCritic creates the critic agent.
func NewCritic() *Critic {
	a := &Critic{BaseAgent: NewBaseAgent(CriticID, "Critic")}
	a.SetDescription("Ranks feedback for preference learning.")
	return a
}

// Analyze returns one info/preference finding located at the first change,
// or nothing for an empty change set.
func (a *Critic) Analyze(_ context.Context, changes []core.DiffChange, _ string) []core.Finding {
	if len(changes) == 0 {
		return []core.Finding{}
	}
	return []core.Finding{finding(changes[0], core.SeverityInfo, "preference",
		"Generated placeholder preference record for DPO.",
		"Use human feedback to create preferred/rejected pairs.")}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
