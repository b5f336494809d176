package retriever

import (
	"encoding/json"
	"strings"
)

// Language models emit near-valid JSON often enough that a small, fixed set
// of repairs avoids most hard failures: a markdown code fence around the
// object, embedded newlines, a trailing comma before the closing brace.
// Anything the repairs cannot fix stays a parse error for the caller to
// classify.

// LenientUnmarshal repairs raw model output and unmarshals it into v.
func LenientUnmarshal(raw string, v interface{}) error {
	return json.Unmarshal([]byte(RepairJSON(raw)), v)
}

// RepairJSON applies the repair rules in order and returns the result. Each
// rule is deliberate and testable; no other surgery is attempted.
func RepairJSON(raw string) string {
	s := strings.TrimSpace(raw)
	s = stripCodeFence(s)
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[len(s)-2] == ',' {
		s = s[:len(s)-2] + "}"
	}
	return s
}

// stripCodeFence removes a surrounding markdown fence, with or without a
// language tag on the opening line.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
