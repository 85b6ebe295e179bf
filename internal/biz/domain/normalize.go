package domain

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeForMatching canonicalizes text for phrase matching:
// lowercase, NFD with combining marks removed, punctuation stripped,
// whitespace collapsed.
func NormalizeForMatching(text string) string {
	base := foldText(text)
	if base == "" {
		return ""
	}
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, base)
	return collapseSpaces(stripped)
}

// NormalizeForDisplayCleanup is the lenient variant: same folding as
// NormalizeForMatching but punctuation is preserved.
func NormalizeForDisplayCleanup(text string) string {
	return collapseSpaces(foldText(text))
}

func foldText(text string) string {
	if text == "" {
		return ""
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	folded, _, err := transform.String(t, strings.ToLower(text))
	if err != nil {
		return strings.ToLower(text)
	}
	return folded
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
