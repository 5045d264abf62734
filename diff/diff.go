// Package diff turns unified diff text into the flat sequence of changed
// lines consumed by review agents.
package diff

import (
	"fmt"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
	"github.com/hupe1980/reviewmesh/core"
)

// Parse reads a unified diff and returns one DiffChange per added or removed
// line, in file, hunk and line order. Context lines are skipped.
//
// Parse never fails: malformed input (including hunks whose line counts
// disagree with their header) yields an empty slice.
func Parse(text string) []core.DiffChange {
	files, _, err := gitdiff.Parse(strings.NewReader(text))
	if err != nil {
		return []core.DiffChange{}
	}

	git := gitHeaders(text, len(files))

	changes := []core.DiffChange{}
	for i, f := range files {
		path := filePath(f, git[i])
		for _, frag := range f.TextFragments {
			oldLine, newLine := frag.OldPosition, frag.NewPosition
			for _, line := range frag.Lines {
				switch line.Op {
				case gitdiff.OpAdd:
					changes = append(changes, change(path, newLine, line.Line, core.ChangeAdded))
					newLine++
				case gitdiff.OpDelete:
					changes = append(changes, change(path, oldLine, line.Line, core.ChangeRemoved))
					oldLine++
				default:
					oldLine++
					newLine++
				}
			}
		}
	}

	return changes
}

func change(path string, lineNo int64, content string, kind core.ChangeType) core.DiffChange {
	return core.DiffChange{
		FilePath:   path,
		LineNumber: int(lineNo),
		Content:    strings.TrimRight(content, "\r\n"),
		ChangeType: kind,
	}
}

const devNull = "/dev/null"

// filePath prefers the post-image name; deleted files only have the old one.
// Git headers already drop the a/ and b/ prefixes; plain unified headers
// keep them, so they are stripped here.
func filePath(f *gitdiff.File, git bool) string {
	name := f.NewName
	if f.IsDelete || name == "" {
		name = f.OldName
	}
	if git || name == devNull {
		return name
	}
	for _, prefix := range []string{"a/", "b/"} {
		if rest, ok := strings.CutPrefix(name, prefix); ok && rest != "" {
			return rest
		}
	}
	return name
}

// gitHeaders reports, per file section of text, whether it starts with a
// "diff --git" header. A plain section is a "---", "+++", "@@ -" triple
// outside a git header. When the scan disagrees with the parser's file
// count every section is treated as git, which leaves names untouched.
func gitHeaders(text string, n int) []bool {
	lines := strings.Split(text, "\n")
	kinds := make([]bool, 0, n)
	inGitHeader := false
	for i, l := range lines {
		switch {
		case strings.HasPrefix(l, "diff --git "):
			kinds = append(kinds, true)
			inGitHeader = true
		case strings.HasPrefix(l, "@@ "):
			inGitHeader = false
		case !inGitHeader && strings.HasPrefix(l, "--- ") && i+2 < len(lines) &&
			strings.HasPrefix(lines[i+1], "+++ ") && strings.HasPrefix(lines[i+2], "@@ -"):
			kinds = append(kinds, false)
		}
	}
	if len(kinds) != n {
		kinds = make([]bool, n)
		for i := range kinds {
			kinds[i] = true
		}
	}
	return kinds
}

// Stats returns the number of distinct files and the added/removed line counts.
func Stats(changes []core.DiffChange) (files, added, removed int) {
	seen := map[string]struct{}{}
	for _, c := range changes {
		seen[c.FilePath] = struct{}{}
		switch c.ChangeType {
		case core.ChangeAdded:
			added++
		case core.ChangeRemoved:
			removed++
		}
	}
	return len(seen), added, removed
}

// Render formats changes as "path:line" headed, +/- prefixed text suitable
// for prompts. Consecutive changes of the same file share a header.
func Render(changes []core.DiffChange) string {
	var b strings.Builder
	current := ""
	for i, c := range changes {
		if i == 0 || c.FilePath != current {
			current = c.FilePath
			fmt.Fprintf(&b, "--- %s\n", current)
		}
		prefix := "+"
		if c.ChangeType == core.ChangeRemoved {
			prefix = "-"
		}
		if c.LineNumber > 0 {
			fmt.Fprintf(&b, "%s%d: %s\n", prefix, c.LineNumber, c.Content)
		} else {
			fmt.Fprintf(&b, "%s %s\n", prefix, c.Content)
		}
	}
	return b.String()
}
