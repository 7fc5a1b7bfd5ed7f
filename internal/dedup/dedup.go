// Package dedup collapses repeated findings into a canonical set. The same
// identity rule (types.Issue.Key) applies at every granularity: merging the
// chunk outcomes of one file and aggregating the whole findings store use
// one function, not two divergent ones.
package dedup

import "github.com/dshills/codescan-mcp/pkg/types"

// Merge concatenates issues from all successful outcomes in chunk order and
// collapses duplicates, keeping the first occurrence of each identity key.
// Failed outcomes contribute nothing.
func Merge(outcomes []types.Outcome) []types.Issue {
	var issues []types.Issue
	for _, o := range outcomes {
		if !o.OK() {
			continue
		}
		issues = append(issues, o.Issues...)
	}
	return Canonical(issues)
}

// Canonical returns issues with duplicates removed, preserving first-seen
// order. Applying it twice yields the same result.
func Canonical(issues []types.Issue) []types.Issue {
	if len(issues) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(issues))
	out := make([]types.Issue, 0, len(issues))
	for _, is := range issues {
		key := is.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, is)
	}
	return out
}
