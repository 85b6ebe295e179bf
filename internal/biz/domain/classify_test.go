package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestClassify_ExceptionBeatsDisallowed(t *testing.T) {
	msgs := []ProcessedMessage{{Text: "exception and disallowed", TS: "2"}}
	phrases := PhraseSets{Exception: []string{"exception"}, Disallowed: []string{"disallowed"}}

	got := Classify(msgs, phrases)

	assert.Equal(t, MergeStatusException, got.Status)
	require.NotNil(t, got.Message)
	assert.Equal(t, "2", got.Message.TS)
}

func TestClassify_DisallowedBeatsAllowed(t *testing.T) {
	msgs := []ProcessedMessage{{Text: "We are NOT allowed to merge", TS: "5"}}
	got := Classify(msgs, DefaultPhraseSets())
	assert.Equal(t, MergeStatusDisallowed, got.Status)
}

func TestClassify_NewestMatchWins(t *testing.T) {
	msgs := []ProcessedMessage{
		{Text: "random chatter", TS: "30"},
		{Text: "allowed to merge this task only", TS: "20"},
		{Text: "allowed to merge", TS: "10"},
	}
	got := Classify(msgs, DefaultPhraseSets())
	assert.Equal(t, MergeStatusException, got.Status)
	assert.Equal(t, "20", got.Message.TS)
}

func TestClassify_NoMatch(t *testing.T) {
	assert.Equal(t, Classification{Status: MergeStatusUnknown}, Classify(nil, DefaultPhraseSets()))

	msgs := []ProcessedMessage{{Text: "hello", TS: "1"}}
	assert.Equal(t, Classification{Status: MergeStatusUnknown}, Classify(msgs, PhraseSets{}))
}

func TestClassify_BlankPhrasesNeverMatch(t *testing.T) {
	msgs := []ProcessedMessage{{Text: "anything at all", TS: "1"}}
	got := Classify(msgs, PhraseSets{Allowed: []string{" ", "!!"}})
	assert.Equal(t, MergeStatusUnknown, got.Status)
	assert.Nil(t, got.Message)
}

func TestClassify_PunctuationAndAccentsIgnored(t *testing.T) {
	msgs := []ProcessedMessage{{Text: "Closing versions... DO NOT merge!!", TS: "1"}}
	got := Classify(msgs, DefaultPhraseSets())
	assert.Equal(t, MergeStatusDisallowed, got.Status)
}

func TestProperty_ClassifierRecency(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 10).Draw(t, "older")
		var msgs []ProcessedMessage
		msgs = append(msgs, ProcessedMessage{Text: "EXCEPTION here", TS: fmt.Sprintf("%d", 1000)})
		for i := 0; i < n; i++ {
			msgs = append(msgs, ProcessedMessage{Text: "allowed", TS: fmt.Sprintf("%d", 999-i)})
		}
		got := Classify(msgs, PhraseSets{Allowed: []string{"allowed"}, Exception: []string{"exception"}})
		if got.Status != MergeStatusException || got.Message.TS != "1000" {
			t.Fatalf("expected newest exception, got %v", got)
		}
	})
}

func TestProperty_ClassifierPriority(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		words := rapid.SliceOfN(rapid.SampledFrom([]string{"alpha", "beta", "gamma"}), 1, 3).Draw(t, "words")
		text := ""
		for _, w := range words {
			text += w + " "
		}
		phrases := PhraseSets{Exception: []string{"alpha"}, Disallowed: []string{"beta"}, Allowed: []string{"gamma"}}
		got := Classify([]ProcessedMessage{{Text: text, TS: "1"}}, phrases)

		want := MergeStatusAllowed
		switch {
		case contains(words, "alpha"):
			want = MergeStatusException
		case contains(words, "beta"):
			want = MergeStatusDisallowed
		}
		if got.Status != want {
			t.Fatalf("text %q: got %s want %s", text, got.Status, want)
		}
	})
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
