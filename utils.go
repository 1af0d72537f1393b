package parsley

import "strings"

// SanitizeJSONResponse removes garbage characters often produced by LLMs:
// surrounding whitespace and markdown code fences.
func SanitizeJSONResponse(b []byte) []byte {
	s := strings.TrimSpace(string(b))
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return []byte(strings.TrimSpace(s))
}

// preview shortens a string for debug logging.
func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
