package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hupe1980/reviewmesh/aggregate"
	"github.com/hupe1980/reviewmesh/core"
	"github.com/hupe1980/reviewmesh/diff"
	"gopkg.in/yaml.v3"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

type commentView struct {
	ID           string   `json:"id,omitempty" yaml:"id,omitempty"`
	AgentID      string   `json:"agent_id" yaml:"agent_id"`
	Contributors []string `json:"contributors" yaml:"contributors"`
	FilePath     string   `json:"file_path" yaml:"file_path"`
	LineNumber   int      `json:"line_number" yaml:"line_number"`
	Severity     string   `json:"severity" yaml:"severity"`
	Category     string   `json:"category" yaml:"category"`
	Description  string   `json:"description" yaml:"description"`
	Suggestion   string   `json:"suggestion,omitempty" yaml:"suggestion,omitempty"`
}

type traceView struct {
	AgentID       string    `json:"agent_id" yaml:"agent_id"`
	StartedAt     time.Time `json:"started_at" yaml:"started_at"`
	CompletedAt   time.Time `json:"completed_at" yaml:"completed_at"`
	InputSummary  string    `json:"input_summary" yaml:"input_summary"`
	OutputSummary string    `json:"output_summary" yaml:"output_summary"`
}

type reviewView struct {
	ID        string         `json:"id" yaml:"id"`
	Status    string         `json:"status" yaml:"status"`
	CreatedAt time.Time      `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" yaml:"updated_at"`
	Metadata  map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Error     string         `json:"error,omitempty" yaml:"error,omitempty"`
	Comments  []commentView  `json:"comments,omitempty" yaml:"comments,omitempty"`
	Traces    []traceView    `json:"traces,omitempty" yaml:"traces,omitempty"`

	// text output only
	bySeverity []commentView
	counts     map[core.Severity]int
}

func newCommentView(id string, c core.AggregatedComment) commentView {
	return commentView{
		ID:           id,
		AgentID:      c.AgentID,
		Contributors: c.Contributors,
		FilePath:     c.FilePath,
		LineNumber:   c.LineNumber,
		Severity:     string(c.Severity),
		Category:     c.Category,
		Description:  c.Description,
		Suggestion:   c.Suggestion,
	}
}

func newTraceViews(traces []core.AgentTrace) []traceView {
	out := make([]traceView, 0, len(traces))
	for _, t := range traces {
		out = append(out, traceView(t))
	}
	return out
}

func newReviewView(r core.Review, comments []core.Comment, traces []core.AgentTrace) reviewView {
	v := reviewView{
		ID:        r.ID,
		Status:    string(r.Status),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
		Metadata:  r.Metadata,
		Error:     r.Error,
		Traces:    newTraceViews(traces),
	}
	for _, c := range comments {
		v.Comments = append(v.Comments, newCommentView(c.ID, c.AggregatedComment))
	}

	// Keys are unique within a review.
	ids := make(map[core.FindingKey]string, len(comments))
	sorted := make([]core.AggregatedComment, len(comments))
	for i, c := range comments {
		ids[c.Key()] = c.ID
		sorted[i] = c.AggregatedComment
	}
	aggregate.SortBySeverity(sorted)
	for _, c := range sorted {
		v.bySeverity = append(v.bySeverity, newCommentView(ids[c.Key()], c))
	}
	v.counts = aggregate.CountBySeverity(sorted)
	return v
}

var severities = []core.Severity{
	core.SeverityCritical, core.SeverityHigh, core.SeverityMedium, core.SeverityLow, core.SeverityInfo,
}

// summaryLines describes the reviewed diff and the comment severities.
func summaryLines(v reviewView) []string {
	var lines []string
	if text, ok := v.Metadata[core.MetadataDiff].(string); ok {
		files, added, removed := diff.Stats(diff.Parse(text))
		lines = append(lines, fmt.Sprintf("diff: %d files, +%d -%d", files, added, removed))
	}
	var parts []string
	for _, s := range severities {
		if n := v.counts[s]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", s, n))
		}
	}
	if len(parts) > 0 {
		lines = append(lines, "severity: "+strings.Join(parts, ", "))
	}
	return lines
}

// write encodes v as json or yaml, or calls text for the text format.
func write(w io.Writer, format string, v any, text func(io.Writer) error) error {
	switch strings.ToLower(format) {
	case formatJSON:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("marshaling YAML: %w", err)
		}
		return enc.Close()
	case formatText:
		return text(w)
	default:
		return checkFormat(format)
	}
}

func location(path string, line int) string {
	if line <= 0 {
		return path
	}
	return fmt.Sprintf("%s:%d", path, line)
}

func writeComments(w io.Writer, comments []commentView) {
	if len(comments) == 0 {
		fmt.Fprintln(w, "No issues found.")
		return
	}
	for _, c := range comments {
		fmt.Fprintf(w, "  [%s] %s %s: %s (%s)\n",
			c.Severity, location(c.FilePath, c.LineNumber), c.Category, c.Description,
			strings.Join(c.Contributors, ", "))
		if c.Suggestion != "" {
			fmt.Fprintf(w, "      suggestion: %s\n", c.Suggestion)
		}
	}
}

func writeReviewText(w io.Writer, v reviewView) error {
	fmt.Fprintf(w, "review %s: %s (%d comments, %d traces)\n", v.ID, v.Status, len(v.Comments), len(v.Traces))
	if v.Error != "" {
		fmt.Fprintf(w, "  error: %s\n", v.Error)
	}
	for _, line := range summaryLines(v) {
		fmt.Fprintf(w, "  %s\n", line)
	}
	writeComments(w, v.bySeverity)
	for _, t := range v.Traces {
		fmt.Fprintf(w, "  trace %s: %s -> %s (%s)\n",
			t.AgentID, t.InputSummary, t.OutputSummary, t.CompletedAt.Sub(t.StartedAt).Round(time.Microsecond))
	}
	return nil
}
