// Package coerce turns raw language-model output into typed values. Model
// text is untrusted: it may be fenced in markdown, wrapped in prose, or not
// JSON at all. Decoding never fails; when no JSON object can be recovered a
// fallback built from the raw text is returned instead.
package coerce

import (
	"encoding/json"
	"strings"
	"unicode/utf8"
)

// FallbackSummaryLen is the number of characters of raw text used as the
// summary when the response cannot be parsed.
const FallbackSummaryLen = 500

// StripFences trims whitespace and removes a leading ```json or ``` fence
// and a trailing ``` fence.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// outerObject returns the span from the first '{' to the last '}', or "" if
// there is none.
func outerObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

// Unmarshal decodes raw model output into v. It strips fences, tries a
// strict parse, then retries on the outermost {...} span. It reports whether
// either attempt succeeded; v is only meaningful when it returns true.
func Unmarshal(raw string, v any) bool {
	s := StripFences(raw)
	if s == "" {
		return false
	}
	if err := json.Unmarshal([]byte(s), v); err == nil {
		return true
	}
	obj := outerObject(s)
	if obj == "" || obj == s {
		return false
	}
	return json.Unmarshal([]byte(obj), v) == nil
}

// Object decodes raw into a generic JSON object. When the text is not a JSON
// object, the fallback carries the leading text under "summary" and
// "executive_summary" and empty lists for the list-valued fields.
func Object(raw string) map[string]any {
	var m map[string]any
	if Unmarshal(raw, &m) && m != nil {
		return m
	}
	snippet := Snippet(raw, FallbackSummaryLen)
	return map[string]any{
		"summary":           snippet,
		"executive_summary": snippet,
		"key_points":        []any{},
		"benefits":          []any{},
		"concerns":          []any{},
		"affected_groups":   []any{},
	}
}

// Snippet returns at most n runes of the fence-stripped text.
func Snippet(raw string, n int) string {
	s := StripFences(raw)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
