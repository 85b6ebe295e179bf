package domain

import "strings"

// Classification is the outcome of a classifier pass
type Classification struct {
	Status  MergeStatus
	Message *ProcessedMessage
}

// Classify finds the newest message matching any phrase list.
// Messages must be ordered newest-first. Within a message exception phrases
// win over disallowed, which win over allowed. Substring containment is used
// after both sides are normalized with NormalizeForMatching.
func Classify(messages []ProcessedMessage, phrases PhraseSets) Classification {
	exception := normalizeAll(phrases.Exception)
	disallowed := normalizeAll(phrases.Disallowed)
	allowed := normalizeAll(phrases.Allowed)

	for i := range messages {
		text := NormalizeForMatching(messages[i].Text)
		if text == "" {
			continue
		}
		var status MergeStatus
		switch {
		case containsAny(text, exception):
			status = MergeStatusException
		case containsAny(text, disallowed):
			status = MergeStatusDisallowed
		case containsAny(text, allowed):
			status = MergeStatusAllowed
		default:
			continue
		}
		msg := messages[i]
		return Classification{Status: status, Message: &msg}
	}
	return Classification{Status: MergeStatusUnknown}
}

// normalizeAll drops phrases that normalize to nothing, since an empty
// needle would match every message.
func normalizeAll(phrases []string) []string {
	out := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if n := NormalizeForMatching(p); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}
