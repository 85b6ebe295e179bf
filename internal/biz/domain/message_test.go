package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestCompareTS(t *testing.T) {
	assert.Equal(t, 0, CompareTS("1712345678.000100", "1712345678.0001"))
	assert.Equal(t, 1, CompareTS("1712345678.123457", "1712345678.123456"))
	assert.Equal(t, -1, CompareTS("9.5", "10.1"))
	assert.Equal(t, 1, CompareTS("2", "10abc"))
	assert.Equal(t, 0, CompareTS("", "garbage"))
}

func TestMergeMessages_DedupKeepsFirstAfterSort(t *testing.T) {
	in := []ProcessedMessage{
		{Text: "old", TS: "1"},
		{Text: "first copy", TS: "3"},
		{Text: "second copy", TS: "3"},
		{Text: "middle", TS: "2"},
	}
	got := MergeMessages(in, 10)

	assert.Equal(t, []ProcessedMessage{
		{Text: "first copy", TS: "3"},
		{Text: "middle", TS: "2"},
		{Text: "old", TS: "1"},
	}, got)
	assert.Equal(t, "old", in[0].Text, "input must not be reordered")
}

func TestMergeMessages_Truncates(t *testing.T) {
	var in []ProcessedMessage
	for i := 0; i < 60; i++ {
		in = append(in, ProcessedMessage{TS: fmt.Sprintf("%d.000001", i)})
	}
	got := MergeMessages(in, DefaultMaxMessages)
	assert.Len(t, got, DefaultMaxMessages)
	assert.Equal(t, "59.000001", got[0].TS)
	assert.Equal(t, "10.000001", got[len(got)-1].TS)
}

func TestCanvasUser(t *testing.T) {
	m := ProcessedMessage{User: CanvasUser("F123")}
	assert.Equal(t, "canvas-F123", m.User)
	assert.True(t, m.IsCanvas())
	assert.False(t, (&ProcessedMessage{User: "U1"}).IsCanvas())
}

func TestProperty_MergeMessagesSortedUnique(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		raw := rapid.SliceOf(rapid.IntRange(0, 100)).Draw(t, "ts")
		var in []ProcessedMessage
		for _, n := range raw {
			in = append(in, ProcessedMessage{TS: fmt.Sprintf("%d", n)})
		}
		got := MergeMessages(in, DefaultMaxMessages)
		if len(got) > DefaultMaxMessages {
			t.Fatalf("len %d exceeds cap", len(got))
		}
		for i := 1; i < len(got); i++ {
			if CompareTS(got[i-1].TS, got[i].TS) <= 0 {
				t.Fatalf("not strictly descending at %d: %v", i, got)
			}
		}
	})
}
