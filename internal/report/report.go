// Package report renders the findings store as a markdown document:
// summary counts, issues grouped by severity, failed files, and a per-type
// breakdown. Issues duplicated across files or rescans are collapsed
// store-wide before rendering.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/dshills/codescan-mcp/pkg/types"
)

// fileIssue pairs an issue with the file it was first reported in
type fileIssue struct {
	File  string
	Issue types.Issue
}

// Generate renders the full markdown report for the given findings
func Generate(records []*types.FindingsRecord, now time.Time) string {
	sorted := make([]*types.FindingsRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].FilePath < sorted[j].FilePath })

	issues := collectDistinct(sorted)
	var failed []*types.FindingsRecord
	for _, record := range sorted {
		if record.Failed() {
			failed = append(failed, record)
		}
	}

	var b strings.Builder
	b.WriteString("# Code Scan Report\n\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", now.Format("2006-01-02 15:04:05 MST"))

	writeSummary(&b, sorted, issues, failed)
	writeSeveritySections(&b, issues)
	writeFailedFiles(&b, failed)
	writeFilesWithIssues(&b, sorted)
	writeTypeBreakdown(&b, issues)

	return b.String()
}

// collectDistinct flattens all issues in file order and drops duplicates by
// identity, keeping the first file each issue was seen in
func collectDistinct(records []*types.FindingsRecord) []fileIssue {
	seen := make(map[string]bool)
	var issues []fileIssue
	for _, record := range records {
		for _, issue := range record.Issues {
			key := issue.Key()
			if seen[key] {
				continue
			}
			seen[key] = true
			issues = append(issues, fileIssue{File: record.FilePath, Issue: issue})
		}
	}
	return issues
}

func writeSummary(b *strings.Builder, records []*types.FindingsRecord, issues []fileIssue, failed []*types.FindingsRecord) {
	withIssues := 0
	for _, record := range records {
		if len(record.Issues) > 0 {
			withIssues++
		}
	}

	b.WriteString("## Summary\n\n")
	b.WriteString("| Metric | Count |\n")
	b.WriteString("|--------|-------|\n")
	fmt.Fprintf(b, "| Files scanned | %s |\n", humanize.Comma(int64(len(records))))
	fmt.Fprintf(b, "| Files with issues | %s |\n", humanize.Comma(int64(withIssues)))
	fmt.Fprintf(b, "| Files failed | %s |\n", humanize.Comma(int64(len(failed))))
	fmt.Fprintf(b, "| Distinct issues | %s |\n", humanize.Comma(int64(len(issues))))
	b.WriteString("\n")
}

var severityOrder = []types.Severity{types.SeverityHigh, types.SeverityMedium, types.SeverityLow}

func writeSeveritySections(b *strings.Builder, issues []fileIssue) {
	for _, severity := range severityOrder {
		var matched []fileIssue
		for _, fi := range issues {
			if fi.Issue.Severity == severity {
				matched = append(matched, fi)
			}
		}
		if len(matched) == 0 {
			continue
		}

		fmt.Fprintf(b, "## %s Severity (%d)\n\n", titleCase(string(severity)), len(matched))
		for _, fi := range matched {
			fmt.Fprintf(b, "### %s\n\n", fi.File)
			fmt.Fprintf(b, "- **Type**: %s\n", fi.Issue.Type)
			fmt.Fprintf(b, "- **Description**: %s\n", fi.Issue.Description)
			if fi.Issue.LineHint != "" {
				fmt.Fprintf(b, "- **Location**: `%s`\n", fi.Issue.LineHint)
			}
			if fi.Issue.CWE != "" {
				fmt.Fprintf(b, "- **CWE**: %s\n", fi.Issue.CWE)
			}
			b.WriteString("\n")
		}
	}
}

func writeFailedFiles(b *strings.Builder, failed []*types.FindingsRecord) {
	if len(failed) == 0 {
		return
	}
	fmt.Fprintf(b, "## Failed Files (%d)\n\n", len(failed))
	b.WriteString("These files could not be analyzed and will be retried on the next run.\n\n")
	for _, record := range failed {
		fmt.Fprintf(b, "- `%s`: %s\n", record.FilePath, record.ScanError)
	}
	b.WriteString("\n")
}

func writeFilesWithIssues(b *strings.Builder, records []*types.FindingsRecord) {
	var withIssues []*types.FindingsRecord
	for _, record := range records {
		if len(record.Issues) > 0 {
			withIssues = append(withIssues, record)
		}
	}
	if len(withIssues) == 0 {
		return
	}

	b.WriteString("## Files With Issues\n\n")
	b.WriteString("| File | Issues | Size |\n")
	b.WriteString("|------|--------|------|\n")
	for _, record := range withIssues {
		fmt.Fprintf(b, "| `%s` | %d | %s |\n",
			record.FilePath, len(record.Issues), humanize.Bytes(uint64(record.FileSize)))
	}
	b.WriteString("\n")
}

func writeTypeBreakdown(b *strings.Builder, issues []fileIssue) {
	if len(issues) == 0 {
		return
	}
	counts := make(map[types.IssueType]int)
	for _, fi := range issues {
		counts[fi.Issue.Type]++
	}

	b.WriteString("## Issues By Type\n\n")
	b.WriteString("| Type | Count |\n")
	b.WriteString("|------|-------|\n")
	for _, issueType := range []types.IssueType{types.IssueSecurity, types.IssuePattern, types.IssueRegression} {
		if counts[issueType] > 0 {
			fmt.Fprintf(b, "| %s | %d |\n", issueType, counts[issueType])
		}
	}
	b.WriteString("\n")
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
