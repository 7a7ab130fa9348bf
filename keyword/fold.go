package keyword

import "strings"

// Confusable folding table. Both members of each visually-confusable pair
// (Cyrillic/Latin look-alikes), plus common digit and symbol substitutions,
// map to a single canonical rune. Cyrillic letters without a convincing Latin
// look-alike are left alone, so folding never conflates unrelated Cyrillic
// words.
var confusables = map[rune]rune{
	// Cyrillic → Latin look-alikes
	'а': 'a',
	'в': 'b',
	'е': 'e',
	'ё': 'e',
	'к': 'k',
	'м': 'm',
	'н': 'h',
	'о': 'o',
	'р': 'p',
	'с': 'c',
	'т': 't',
	'у': 'y',
	'х': 'x',
	// digit and symbol substitutions
	'0': 'o',
	'1': 'i',
	'3': 'e',
	'4': 'a',
	'5': 's',
	'6': 'g',
	'7': 't',
	'8': 'b',
	'@': 'a',
	'$': 's',
}

// FoldConfusables maps every rune of s through the confusable table. Input is
// expected to already be lower-case.
func FoldConfusables(s string) string {
	return strings.Map(func(r rune) rune {
		if out, ok := confusables[r]; ok {
			return out
		}
		return r
	}, s)
}

// Skeleton produces the canonical comparison form of a word: lower-cased,
// slug-stripped, confusables folded, and repeated-rune runs collapsed (so
// stretched spellings like "haaaate" compare equal to "hate").
func Skeleton(word string) string {
	folded := FoldConfusables(Slugify(word))
	var b strings.Builder
	b.Grow(len(folded))
	var prev rune = -1
	for _, r := range folded {
		if r == prev {
			continue
		}
		b.WriteRune(r)
		prev = r
	}
	return b.String()
}
