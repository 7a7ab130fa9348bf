package keyword

import (
	"strings"
	"unicode"
)

// Matcher checks tokenized text against a curated blocklist. Matching is
// anchored on token boundaries (a blocked term never matches inside an
// unrelated longer word) and tolerant of character-substitution obfuscation
// via Skeleton folding.
type Matcher struct {
	// skeleton → canonical blocklist term
	terms map[string]string
}

// Minimum skeleton length for a candidate token. Shorter tokens are far more
// likely to be false positives than deliberate obfuscation.
const minTokenLen = 3

func NewMatcher(terms []string) *Matcher {
	m := &Matcher{
		terms: make(map[string]string, len(terms)),
	}
	for _, t := range terms {
		sk := Skeleton(t)
		if sk == "" {
			continue
		}
		m.terms[sk] = t
	}
	return m
}

// Match returns the canonical blocklist terms found in text, in token order.
// Purely numeric tokens and tokens shorter than the minimum length are
// skipped as false positives.
func (m *Matcher) Match(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, tok := range TokenizeText(text) {
		if isNumeric(tok) {
			continue
		}
		sk := Skeleton(tok)
		if len([]rune(sk)) < minTokenLen {
			continue
		}
		term, ok := m.terms[sk]
		if !ok {
			// de-pluralize
			term, ok = m.terms[strings.TrimSuffix(sk, "s")]
		}
		if ok && !seen[term] {
			seen[term] = true
			out = append(out, term)
		}
	}
	return out
}

// MatchFirst returns the first blocked term found in text, if any.
func (m *Matcher) MatchFirst(text string) (string, bool) {
	matches := m.Match(text)
	if len(matches) == 0 {
		return "", false
	}
	return matches[0], true
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsNumber(r) {
			return false
		}
	}
	return len(s) > 0
}
