package analyzer

import (
	"fmt"
	"strings"
)

// repairMaxInput bounds how much of a malformed candidate is re-sent on the
// repair round-trip.
const repairMaxInput = 4000

const replySchema = `{
  "issues": [
    {
      "type": "security|pattern|regression",
      "severity": "high|medium|low",
      "description": "what is wrong and why it matters",
      "line_hint": "the relevant code snippet, verbatim",
      "cwe": "CWE identifier if applicable, otherwise empty"
    }
  ]
}`

const checklist = `Security: injection (SQL, shell, template), hardcoded credentials or keys,
path traversal, unsafe deserialization, weak or homegrown crypto, SSRF,
missing authentication or authorization checks.
Regressions: removed or weakened input validation, swallowed errors,
off-by-one changes around boundaries, race-prone shared state.
Legacy patterns: deprecated or removed APIs, dead code behind permanent
flags, global mutable state, copy-pasted near-duplicate blocks.`

// analysisPrompt builds the fixed instructional prompt for one chunk. The
// schema and checklist never vary between calls; only the file identity,
// shared context, and chunk text do.
func analysisPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("Analyze this code for issues. Return ONLY a single JSON object in this exact format:\n\n")
	b.WriteString(replySchema)
	b.WriteString("\n\nCheck for:\n")
	b.WriteString(checklist)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "File: %s", req.FilePath)
	if req.ChunkTotal > 1 {
		fmt.Fprintf(&b, " (part %d of %d)", req.ChunkIndex+1, req.ChunkTotal)
	}
	b.WriteString("\n")
	if req.ContextHeader != "" {
		b.WriteString("\nShared file context:\n```\n")
		b.WriteString(req.ContextHeader)
		b.WriteString("\n```\n")
	}
	b.WriteString("\n```\n")
	b.WriteString(req.ChunkText)
	b.WriteString("\n```\n\n")
	b.WriteString(`If no issues are found, return {"issues": []}` + "\n")
	return b.String()
}

// repairPrompt asks the endpoint to fix its own malformed output. Kept
// terse; sent at deterministic sampling.
func repairPrompt(malformed string) string {
	return "The following text was supposed to be a single JSON object of the form " +
		`{"issues": [...]} but is not valid JSON. ` +
		"Return ONLY the corrected, minified JSON object with no prose, no fences, nothing else.\n\n" +
		malformed
}
