package patterns

import (
	"regexp"
	"sort"
	"strings"
)

// PhraseSet matches a list of phrases case-insensitively on word boundaries.
// A trailing "*" on a phrase matches any word suffix ("restrict*" hits "restrictions").
type PhraseSet struct {
	re *regexp.Regexp
}

// NewPhraseSet compiles phrases into a single alternation, longest first.
// An empty list yields a set that never matches.
func NewPhraseSet(phrases []string) (*PhraseSet, error) {
	alts := make([]string, 0, len(phrases))
	for _, p := range phrases {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if strings.HasSuffix(p, "*") {
			alts = append(alts, regexp.QuoteMeta(strings.TrimSuffix(p, "*"))+`\w*`)
			continue
		}
		alts = append(alts, regexp.QuoteMeta(p))
	}
	if len(alts) == 0 {
		return &PhraseSet{}, nil
	}
	sort.SliceStable(alts, func(i, j int) bool { return len(alts[i]) > len(alts[j]) })
	re, err := regexp.Compile(`(?i)\b(?:` + strings.Join(alts, "|") + `)\b`)
	if err != nil {
		return nil, err
	}
	return &PhraseSet{re: re}, nil
}

// Any reports whether any phrase occurs in text.
func (s *PhraseSet) Any(text string) bool {
	if s == nil || s.re == nil {
		return false
	}
	return s.re.MatchString(text)
}

// Count returns the number of non-overlapping phrase hits in text.
func (s *PhraseSet) Count(text string) int {
	if s == nil || s.re == nil {
		return 0
	}
	return len(s.re.FindAllStringIndex(text, -1))
}
