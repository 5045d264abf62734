package agent

import (
	"encoding/json"
	"strings"

	"github.com/hupe1980/reviewmesh/core"
)

// ParseFindings decodes model output of the form {"findings":[...]}.
//
// Markdown code fences and prose around the JSON object are tolerated.
// Items that are not objects are skipped. Missing fields default to
// severity "low", category "general", empty text and line 0; an unknown
// severity is also treated as "low". Anything else yields no findings.
func ParseFindings(output string) []core.Finding {
	findings := []core.Finding{}

	var payload struct {
		Findings []json.RawMessage `json:"findings"`
	}
	if err := json.Unmarshal([]byte(extractJSON(output)), &payload); err != nil {
		return findings
	}

	for _, raw := range payload.Findings {
		item := map[string]any{}
		if err := json.Unmarshal(raw, &item); err != nil {
			continue
		}
		findings = append(findings, core.Finding{
			FilePath:    stringField(item, "file_path", ""),
			LineNumber:  intField(item, "line_number"),
			Severity:    severityField(item),
			Category:    stringField(item, "category", "general"),
			Description: stringField(item, "description", ""),
			Suggestion:  stringField(item, "suggestion", ""),
		})
	}

	return findings
}

// extractJSON strips code fences and narrows text to its outermost object.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		lines := strings.Split(text, "\n")
		end := len(lines)
		if end > 1 && strings.TrimSpace(lines[end-1]) == "```" {
			end--
		}
		text = strings.Join(lines[1:end], "\n")
	}
	start, stop := strings.Index(text, "{"), strings.LastIndex(text, "}")
	if start < 0 || stop < start {
		return text
	}
	return text[start : stop+1]
}

func stringField(item map[string]any, key, def string) string {
	v, ok := item[key]
	if !ok || v == nil {
		return def
	}
	s, ok := v.(string)
	if !ok {
		return def
	}
	return s
}

func intField(item map[string]any, key string) int {
	switch v := item[key].(type) {
	case float64:
		if v < 0 {
			return 0
		}
		return int(v)
	default:
		return 0
	}
}

func severityField(item map[string]any) core.Severity {
	s, ok := item["severity"].(string)
	if !ok {
		return core.SeverityLow
	}
	sev, ok := core.ParseSeverity(s)
	if !ok {
		return core.SeverityLow
	}
	return sev
}

// ParseRanking reads the optional "preferred_agent" and "rejected_agent"
// fields a critic may return next to its findings. ok is false unless both
// are non-empty strings.
func ParseRanking(output string) (preferred, rejected string, ok bool) {
	var payload struct {
		Preferred any `json:"preferred_agent"`
		Rejected  any `json:"rejected_agent"`
	}
	if err := json.Unmarshal([]byte(extractJSON(output)), &payload); err != nil {
		return "", "", false
	}
	preferred, _ = payload.Preferred.(string)
	rejected, _ = payload.Rejected.(string)
	if preferred == "" || rejected == "" {
		return "", "", false
	}
	return preferred, rejected, true
}
