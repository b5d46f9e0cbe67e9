package summarizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSentences(t *testing.T) {
	got := splitSentences("Heading 35.02 covers albumins. Egg albumin is dried!\nNo full stop here\n\n  ...  \nLast one?")
	assert.Equal(t, []string{
		"Heading 35.02 covers albumins.",
		"Egg albumin is dried!",
		"No full stop here",
		"Last one?",
	}, got)
}

func TestSummarize_KeepsShortTextWhole(t *testing.T) {
	s := NewFrequencySummarizer()
	out, err := s.Summarize("Natural rubber. Balata.", 3)
	require.NoError(t, err)
	assert.Equal(t, "Natural rubber. Balata.", out)

	out, err = s.Summarize("   ", 3)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestSummarize_PicksFrequentSentencesInOrder(t *testing.T) {
	text := "Rubber latex is natural rubber. " +
		"The weather was fine. " +
		"Smoked sheets of natural rubber are graded. " +
		"Nothing else matters here. " +
		"Technically specified natural rubber is rubber too."
	out, err := NewFrequencySummarizer().Summarize(text, 2)
	require.NoError(t, err)
	assert.Equal(t, "Rubber latex is natural rubber. Technically specified natural rubber is rubber too.", out)
}

func TestTokens_DropsStopwordsAndKeepsApostrophes(t *testing.T) {
	s := NewFrequencySummarizer()
	assert.Equal(t, []string{"l’albumine", "œuf"}, s.tokens("L’albumine de l' œuf"))
}
