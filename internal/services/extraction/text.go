package extraction

import (
	"regexp"
	"strings"
)

var (
	enumMarker = regexp.MustCompile(`^(?:\(?\d{1,2}[.)]|[-*•·▪]|\([a-z]\))\s*`)
	whitespace = regexp.MustCompile(`\s+`)
)

// splitSentences splits raw text on . ! ? and drops empty pieces.
func splitSentences(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// contextSentence returns the first sentence containing keyword, or the keyword itself.
func contextSentence(text, keyword string) string {
	k := strings.ToLower(keyword)
	for _, s := range splitSentences(text) {
		if strings.Contains(strings.ToLower(s), k) {
			return s
		}
	}
	return keyword
}

// cleanClause strips enumeration markers, collapses whitespace and truncates to max runes.
func cleanClause(s string, max int) string {
	s = strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
	for {
		stripped := strings.TrimSpace(enumMarker.ReplaceAllString(s, ""))
		if stripped == s {
			break
		}
		s = stripped
	}
	if r := []rune(s); max > 0 && len(r) > max {
		s = strings.TrimSpace(string(r[:max]))
	}
	return s
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
