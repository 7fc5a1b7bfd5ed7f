package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codescan-mcp/pkg/types"
)

func issue(typ types.IssueType, sev types.Severity, desc, hint, cwe string) types.Issue {
	return types.Issue{Type: typ, Severity: sev, Description: desc, LineHint: hint, CWE: cwe}
}

func TestCanonical_Idempotent(t *testing.T) {
	issues := []types.Issue{
		issue(types.IssueSecurity, types.SeverityHigh, "sql injection", "query(", "CWE-89"),
		issue(types.IssuePattern, types.SeverityLow, "naked return", "return", ""),
	}

	once := Canonical(issues)
	twice := Canonical(once)

	assert.Equal(t, issues, once)
	assert.Equal(t, once, twice)
}

func TestCanonical_SelfMergeUnchanged(t *testing.T) {
	issues := []types.Issue{
		issue(types.IssueSecurity, types.SeverityHigh, "hardcoded key", "apiKey :=", "CWE-798"),
	}

	merged := Canonical(append(append([]types.Issue{}, issues...), issues...))

	assert.Equal(t, issues, merged)
}

func TestCanonical_SeverityAndCWEDoNotSplitIdentity(t *testing.T) {
	a := issue(types.IssueSecurity, types.SeverityHigh, "path traversal", "open(p)", "CWE-22")
	b := issue(types.IssueSecurity, types.SeverityLow, "path traversal", "open(p)", "")

	out := Canonical([]types.Issue{a, b})

	require.Len(t, out, 1)
	// First occurrence wins.
	assert.Equal(t, types.SeverityHigh, out[0].Severity)
	assert.Equal(t, "CWE-22", out[0].CWE)
}

func TestMerge_ChunkOrderPreserved(t *testing.T) {
	first := issue(types.IssueRegression, types.SeverityMedium, "dropped validation", "if ok {", "")
	second := issue(types.IssuePattern, types.SeverityLow, "deprecated api", "ioutil.ReadAll", "")
	overlap := issue(types.IssueSecurity, types.SeverityHigh, "shell exec", "exec(", "CWE-78")

	outcomes := []types.Outcome{
		types.Success([]types.Issue{first, overlap}),
		types.Success([]types.Issue{overlap, second}),
	}

	merged := Merge(outcomes)

	require.Len(t, merged, 3)
	assert.Equal(t, []types.Issue{first, overlap, second}, merged)
}

func TestMerge_IgnoresFailures(t *testing.T) {
	only := issue(types.IssueSecurity, types.SeverityHigh, "weak hash", "md5.New", "CWE-327")
	outcomes := []types.Outcome{
		types.Failed(types.FailTimeout, "deadline exceeded"),
		types.Success([]types.Issue{only}),
		types.Failed(types.FailAPI, "500 internal"),
	}

	merged := Merge(outcomes)

	assert.Equal(t, []types.Issue{only}, merged)
}

func TestMerge_Empty(t *testing.T) {
	assert.Nil(t, Merge(nil))
	assert.Nil(t, Merge([]types.Outcome{types.Success(nil)}))
}
