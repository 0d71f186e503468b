package corpus

import (
	"regexp"
	"strings"
)

var (
	tagPattern   = regexp.MustCompile(`<[^>]+>`)
	spacePattern = regexp.MustCompile(`\s+`)
)

// NormalizeText canonicalizes a raw text field for indexing: HTML tags are
// replaced by spaces, whitespace runs collapse to one space, the result is
// trimmed and lowercased. The function is idempotent.
func NormalizeText(s string) string {
	if s == "" {
		return ""
	}
	s = tagPattern.ReplaceAllString(s, " ")
	s = spacePattern.ReplaceAllString(s, " ")
	return strings.ToLower(strings.TrimSpace(s))
}

// JoinList normalizes every element and joins them with a single space,
// preserving order.
func JoinList(xs []string) string {
	if len(xs) == 0 {
		return ""
	}
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = NormalizeText(x)
	}
	return strings.Join(parts, " ")
}
