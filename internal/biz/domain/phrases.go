package domain

import "strings"

// Default phrase lists used when the configured list is absent or blank
var (
	DefaultAllowedPhrases    = []string{"allowed to merge"}
	DefaultDisallowedPhrases = []string{"not allowed to merge", "do not merge without consent", "closing versions. do not merge"}
	DefaultExceptionPhrases  = []string{"allowed to merge this task", "except"}
)

// PhraseSets holds the three classification lists
type PhraseSets struct {
	Allowed    []string `json:"allowedPhrases"`
	Disallowed []string `json:"disallowedPhrases"`
	Exception  []string `json:"exceptionPhrases"`
}

// DefaultPhraseSets returns a copy of the built-in phrase lists
func DefaultPhraseSets() PhraseSets {
	return PhraseSets{
		Allowed:    append([]string(nil), DefaultAllowedPhrases...),
		Disallowed: append([]string(nil), DefaultDisallowedPhrases...),
		Exception:  append([]string(nil), DefaultExceptionPhrases...),
	}
}

// ParsePhraseList splits a comma-joined phrase list.
// Returns fallback when the stored value is blank after trimming.
func ParsePhraseList(stored string, fallback []string) []string {
	if strings.TrimSpace(stored) == "" {
		return append([]string(nil), fallback...)
	}
	var phrases []string
	for _, p := range strings.Split(stored, ",") {
		p = NormalizeForDisplayCleanup(p)
		if p != "" {
			phrases = append(phrases, p)
		}
	}
	if len(phrases) == 0 {
		return append([]string(nil), fallback...)
	}
	return phrases
}

// JoinPhraseList is the stored form of a phrase list, as the options page writes it
func JoinPhraseList(phrases []string) string {
	return strings.Join(phrases, ", ")
}

// ResolvePhraseSets builds phrase sets from the three stored strings
func ResolvePhraseSets(allowed, disallowed, exception string) PhraseSets {
	return PhraseSets{
		Allowed:    ParsePhraseList(allowed, DefaultAllowedPhrases),
		Disallowed: ParsePhraseList(disallowed, DefaultDisallowedPhrases),
		Exception:  ParsePhraseList(exception, DefaultExceptionPhrases),
	}
}
