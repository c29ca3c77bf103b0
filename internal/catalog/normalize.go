package catalog

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// NormalizeName produces the catalog identity key for an entity name:
// case-folded, punctuation stripped, whitespace collapsed. "The Hobbit",
// " the hobbit ", and "THE HOBBIT" all normalize to the same key.
// A Caser is constructed per call; cases.Caser instances may be stateful
// and this runs on every workflow worker.
func NormalizeName(name string) string {
	folded := cases.Fold().String(name)

	var b strings.Builder
	b.Grow(len(folded))
	lastSpace := true
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r):
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}
