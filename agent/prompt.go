package agent

import (
	"strings"

	"github.com/hupe1980/reviewmesh/core"
	"github.com/hupe1980/reviewmesh/diff"
	"github.com/hupe1980/reviewmesh/internal/util"
)

// PromptFunc builds the generation prompt for a change set. Returning false
// means the agent should not use generation for this input.
type PromptFunc func(changes []core.DiffChange, repoContext string) (string, bool)

const reviewerTemplate = `You are a {{.Role}} code reviewer.

Diff:
{{.Diff}}

Repository context:
{{.Context}}

Return JSON with:
{"findings":[{"file_path":"", "line_number":0, "severity":"low|medium|high|critical", "category":"", "description":"", "suggestion":""}]}`

const criticTemplate = `You are a reviewer ranking responses for preference learning.

Diff:
{{.Diff}}

Reviews:
{{.Reviews}}

Return JSON with:
{"findings":[{"file_path":"", "line_number":0, "severity":"info", "category":"preference", "description":"", "suggestion":""}]}`

// roles maps built-in agent ids to the reviewer role named in their prompt.
var roles = map[string]string{
	CodeReviewerID: "logic and maintainability",
	SecurityID:     "security",
	StyleID:        "style and formatting",
}

// RolePrompt returns a PromptFunc for a reviewer with the given role.
// It declines empty change sets.
func RolePrompt(role string) PromptFunc {
	return func(changes []core.DiffChange, repoContext string) (string, bool) {
		if len(changes) == 0 {
			return "", false
		}
		return render(reviewerTemplate, map[string]any{
			"Role":    role,
			"Diff":    strings.TrimRight(diff.Render(changes), "\n"),
			"Context": repoContext,
		})
	}
}

// CriticPrompt asks for a ranking of the reviews passed as repoContext. It
// declines when there is nothing to rank.
func CriticPrompt(changes []core.DiffChange, reviews string) (string, bool) {
	if len(changes) == 0 || strings.TrimSpace(reviews) == "" {
		return "", false
	}
	return render(criticTemplate, map[string]any{
		"Diff":    strings.TrimRight(diff.Render(changes), "\n"),
		"Reviews": reviews,
	})
}

// DefaultPrompt picks the prompt used when an agent is wrapped without an
// explicit PromptFunc.
func DefaultPrompt(a core.Agent) PromptFunc {
	if a.ID() == CriticID {
		return CriticPrompt
	}
	if role, ok := roles[a.ID()]; ok {
		return RolePrompt(role)
	}
	return RolePrompt(strings.ToLower(a.Name()))
}

func render(tmpl string, state map[string]any) (string, bool) {
	out, err := util.RenderTemplate(tmpl, state)
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(out), true
}
