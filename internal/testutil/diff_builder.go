package testutil

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/reviewmesh/core"
)

// DiffBuilder provides a fluent helper for constructing unified diffs in tests.
// Example:
//
//	text := NewDiffBuilder().File("app/config.py").Hunk(1, 1).Context("import os").Add("password = 'x'").Build()
//
// Hunk headers are computed from the lines added to each hunk.
type DiffBuilder struct {
	files []*fileDiff
}

type fileDiff struct {
	path    string
	created bool
	deleted bool
	hunks   []*hunk
}

type hunk struct {
	oldStart, newStart int
	lines              []string
}

// NewDiffBuilder creates an empty builder.
func NewDiffBuilder() *DiffBuilder { return &DiffBuilder{} }

// File starts a modified file (chainable).
func (b *DiffBuilder) File(path string) *DiffBuilder {
	b.files = append(b.files, &fileDiff{path: path})
	return b
}

// NewFile starts a created file with an implicit hunk at line 1 (chainable).
func (b *DiffBuilder) NewFile(path string) *DiffBuilder {
	b.files = append(b.files, &fileDiff{path: path, created: true, hunks: []*hunk{{oldStart: 0, newStart: 1}}})
	return b
}

// DeletedFile starts a removed file with an implicit hunk at line 1 (chainable).
func (b *DiffBuilder) DeletedFile(path string) *DiffBuilder {
	b.files = append(b.files, &fileDiff{path: path, deleted: true, hunks: []*hunk{{oldStart: 1, newStart: 0}}})
	return b
}

// Hunk starts a hunk in the current file (chainable).
func (b *DiffBuilder) Hunk(oldStart, newStart int) *DiffBuilder {
	f := b.current()
	f.hunks = append(f.hunks, &hunk{oldStart: oldStart, newStart: newStart})
	return b
}

// Add appends added lines to the current hunk (chainable).
func (b *DiffBuilder) Add(lines ...string) *DiffBuilder { return b.line("+", lines) }

// Remove appends removed lines to the current hunk (chainable).
func (b *DiffBuilder) Remove(lines ...string) *DiffBuilder { return b.line("-", lines) }

// Context appends unchanged lines to the current hunk (chainable).
func (b *DiffBuilder) Context(lines ...string) *DiffBuilder { return b.line(" ", lines) }

func (b *DiffBuilder) line(prefix string, lines []string) *DiffBuilder {
	f := b.current()
	if len(f.hunks) == 0 {
		f.hunks = append(f.hunks, &hunk{oldStart: 1, newStart: 1})
	}
	h := f.hunks[len(f.hunks)-1]
	for _, l := range lines {
		h.lines = append(h.lines, prefix+l)
	}
	return b
}

func (b *DiffBuilder) current() *fileDiff {
	if len(b.files) == 0 {
		b.File("file.txt")
	}
	return b.files[len(b.files)-1]
}

// Build renders the diff text.
func (b *DiffBuilder) Build() string {
	var sb strings.Builder
	for _, f := range b.files {
		fmt.Fprintf(&sb, "diff --git a/%s b/%s\n", f.path, f.path)
		switch {
		case f.created:
			sb.WriteString("new file mode 100644\n")
			fmt.Fprintf(&sb, "--- /dev/null\n+++ b/%s\n", f.path)
		case f.deleted:
			sb.WriteString("deleted file mode 100644\n")
			fmt.Fprintf(&sb, "--- a/%s\n+++ /dev/null\n", f.path)
		default:
			fmt.Fprintf(&sb, "--- a/%s\n+++ b/%s\n", f.path, f.path)
		}
		for _, h := range f.hunks {
			oldCount, newCount := 0, 0
			for _, l := range h.lines {
				switch l[0] {
				case '+':
					newCount++
				case '-':
					oldCount++
				default:
					oldCount++
					newCount++
				}
			}
			fmt.Fprintf(&sb, "@@ -%d,%d +%d,%d @@\n", h.oldStart, oldCount, h.newStart, newCount)
			for _, l := range h.lines {
				sb.WriteString(l)
				sb.WriteByte('\n')
			}
		}
	}
	return sb.String()
}

// FindingsJSON renders findings in the structured output format agents parse.
func FindingsJSON(findings ...core.Finding) string {
	type item struct {
		FilePath    string `json:"file_path"`
		LineNumber  int    `json:"line_number"`
		Severity    string `json:"severity"`
		Category    string `json:"category"`
		Description string `json:"description"`
		Suggestion  string `json:"suggestion"`
	}
	items := make([]item, len(findings))
	for i, f := range findings {
		items[i] = item{f.FilePath, f.LineNumber, string(f.Severity), f.Category, f.Description, f.Suggestion}
	}
	out, _ := json.Marshal(map[string]any{"findings": items})
	return string(out)
}
