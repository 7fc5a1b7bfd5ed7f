package analyzer

import (
	"encoding/json"
	"strings"

	"github.com/dshills/codescan-mcp/pkg/types"
)

// ModelReply is the structured object expected somewhere inside the model's
// free-form reply text.
type ModelReply struct {
	Issues []types.Issue `json:"issues"`
}

// Extract recovers a ModelReply from raw model output. Model output is
// unreliable about both surrounding prose and fence placement, so recovery
// is two-phase: strip code-fence markers, then scan for the first balanced
// brace block and parse that substring. Returns false when nothing
// parseable is present; callers treat that as "needs repair", never as a
// fatal error.
func Extract(raw string) (*ModelReply, bool) {
	candidate := stripFences(raw)
	obj, ok := firstObject(candidate)
	if !ok {
		return nil, false
	}
	var reply ModelReply
	if err := json.Unmarshal([]byte(obj), &reply); err != nil {
		return nil, false
	}
	return &reply, true
}

// stripFences removes a leading ```lang line and a trailing ``` marker.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
	}
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	return s
}

// firstObject returns the first balanced {...} block. Brace depth is
// tracked outside string literals so trailing commentary or braces inside
// descriptions cannot confuse the scan.
func firstObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
