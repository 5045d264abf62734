// Package aggregate collapses raw agent findings into deduplicated comments.
//
// Findings are grouped by core.FindingKey (file path, line number,
// description). Within a group the highest severity wins and ties keep the
// first finding seen. Contributors are the distinct agent ids of the group
// in first-seen order, and the first of them owns the comment. Output order
// follows the first occurrence of each group, so aggregation is stable with
// respect to input order.
package aggregate

import (
	"slices"
	"sort"

	"github.com/hupe1980/reviewmesh/core"
)

// Findings aggregates raw (agent, finding) pairs. Contributors are
// deduplicated: an agent reporting the same key twice is listed once.
func Findings(in []core.AgentFinding) []core.AggregatedComment {
	comments := make([]core.AggregatedComment, len(in))
	for i, af := range in {
		comments[i] = core.AggregatedComment{Finding: af.Finding, AgentID: af.AgentID, Contributors: []string{af.AgentID}}
	}
	return Comments(comments)
}

// Comments merges already aggregated comments that share a key, unioning
// their contributors in order. Comments(Findings(x)) equals Findings(x).
func Comments(in []core.AggregatedComment) []core.AggregatedComment {
	out := make([]core.AggregatedComment, 0, len(in))
	index := make(map[core.FindingKey]int, len(in))

	for _, c := range in {
		key := c.Key()
		i, ok := index[key]
		if !ok {
			index[key] = len(out)
			c.Contributors = appendUnique(nil, contributors(c)...)
			c.AgentID = c.Contributors[0]
			out = append(out, c)
			continue
		}

		group := &out[i]
		group.Contributors = appendUnique(group.Contributors, contributors(c)...)
		if c.Severity.Rank() > group.Severity.Rank() {
			group.Finding = c.Finding
		}
	}

	return out
}

// contributors returns the agents behind c, falling back to its owner.
func contributors(c core.AggregatedComment) []string {
	if len(c.Contributors) > 0 {
		return c.Contributors
	}
	return []string{c.AgentID}
}

func appendUnique(dst []string, ids ...string) []string {
	for _, id := range ids {
		if !slices.Contains(dst, id) {
			dst = append(dst, id)
		}
	}
	return dst
}

// SortBySeverity orders comments by descending severity, keeping the
// existing order among equal severities.
func SortBySeverity(comments []core.AggregatedComment) {
	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].Severity.Rank() > comments[j].Severity.Rank()
	})
}

// CountBySeverity tallies comments per severity.
func CountBySeverity(comments []core.AggregatedComment) map[core.Severity]int {
	counts := map[core.Severity]int{}
	for _, c := range comments {
		counts[c.Severity]++
	}
	return counts
}
