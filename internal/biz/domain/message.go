package domain

import (
	"sort"
	"strconv"
	"strings"
)

// DefaultMaxMessages is the retention cap of the message store
const DefaultMaxMessages = 50

// CanvasUserPrefix marks messages synthesized from channel canvases
const CanvasUserPrefix = "canvas-"

// ProcessedMessage represents a sanitized channel message
// TS is the Slack timestamp string and is the unique key within the store.
type ProcessedMessage struct {
	Text string `json:"text"`
	TS   string `json:"ts"`
	User string `json:"user"`
}

// IncomingMessage is a raw message as delivered by the feed or history API
type IncomingMessage struct {
	TS      string
	Text    string
	User    string
	Channel string
}

// CanvasUser returns the synthetic user marker for a canvas file
func CanvasUser(fileID string) string {
	return CanvasUserPrefix + fileID
}

// IsCanvas reports whether the message was derived from canvas content
func (m *ProcessedMessage) IsCanvas() bool {
	return strings.HasPrefix(m.User, CanvasUserPrefix)
}

// CompareTS compares two Slack timestamps numerically.
// Returns -1 if a < b, 0 if equal, +1 if a > b. Unparseable values count as zero.
func CompareTS(a, b string) int {
	ai, af := splitTS(a)
	bi, bf := splitTS(b)
	switch {
	case ai < bi:
		return -1
	case ai > bi:
		return 1
	}
	// Fractions are compared as right-padded digit strings
	width := len(af)
	if len(bf) > width {
		width = len(bf)
	}
	af += strings.Repeat("0", width-len(af))
	bf += strings.Repeat("0", width-len(bf))
	return strings.Compare(af, bf)
}

func splitTS(ts string) (int64, string) {
	ts = strings.TrimSpace(ts)
	whole, frac, _ := strings.Cut(ts, ".")
	n, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, ""
	}
	for _, r := range frac {
		if r < '0' || r > '9' {
			return n, ""
		}
	}
	return n, frac
}

// SortNewestFirst stably sorts messages by descending timestamp
func SortNewestFirst(msgs []ProcessedMessage) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return CompareTS(msgs[i].TS, msgs[j].TS) > 0
	})
}

// MergeMessages sorts newest-first, drops later duplicates by TS and truncates to max.
// The input slice is not modified.
func MergeMessages(msgs []ProcessedMessage, max int) []ProcessedMessage {
	sorted := make([]ProcessedMessage, len(msgs))
	copy(sorted, msgs)
	SortNewestFirst(sorted)

	seen := make(map[string]bool, len(sorted))
	result := make([]ProcessedMessage, 0, len(sorted))
	for _, m := range sorted {
		if seen[m.TS] {
			continue
		}
		seen[m.TS] = true
		result = append(result, m)
	}
	if max > 0 && len(result) > max {
		result = result[:max]
	}
	return result
}

// ContainsTS reports whether a message with the given timestamp exists
func ContainsTS(msgs []ProcessedMessage, ts string) bool {
	for _, m := range msgs {
		if m.TS == ts {
			return true
		}
	}
	return false
}
