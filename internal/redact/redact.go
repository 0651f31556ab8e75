// Package redact scrubs sensitive substrings from audit payloads.
package redact

import "regexp"

var (
	emailRe = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	tokenRe = regexp.MustCompile(`(?i)(api_key|token|secret)=([A-Za-z0-9_-]+)`)
)

// String replaces email-like substrings with "[redacted-email]" and
// api_key/token/secret assignments with "<key>=[redacted]". It is idempotent.
func String(s string) string {
	s = emailRe.ReplaceAllString(s, "[redacted-email]")
	return tokenRe.ReplaceAllString(s, "$1=[redacted]")
}

// Value applies String recursively through JSON-shaped values (strings,
// slices, maps). Non-string leaves are returned untouched.
func Value(v any) any {
	switch t := v.(type) {
	case string:
		return String(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = Value(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = Value(item)
		}
		return out
	default:
		return v
	}
}

// Map is a convenience wrapper for redacting a JSON object in place of the
// multiple type assertions callers would otherwise need.
func Map(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	return Value(m).(map[string]any)
}
