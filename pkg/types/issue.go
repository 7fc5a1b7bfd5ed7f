package types

// IssueType classifies what kind of problem the analyzer reported.
type IssueType string

const (
	IssueSecurity   IssueType = "security"
	IssuePattern    IssueType = "pattern"
	IssueRegression IssueType = "regression"
)

// Severity ranks how urgent an issue is.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Issue is a single finding reported for one chunk of a file.
type Issue struct {
	Type        IssueType `json:"type"`
	Severity    Severity  `json:"severity"`
	Description string    `json:"description"`
	LineHint    string    `json:"line_hint"`
	CWE         string    `json:"cwe,omitempty"`
}

// Key returns the identity used for deduplication. Two issues with the same
// key are the same issue regardless of which chunk or rescan produced them;
// severity and CWE do not participate.
func (i Issue) Key() string {
	return string(i.Type) + "\x1f" + i.Description + "\x1f" + i.LineHint
}
