package provider

import "strings"

// EstimateTokens approximates the token count of text for providers that do
// not report exact usage. It takes the larger of a word-based estimate
// (words x 1.3) and a character-based estimate (chars / 3.5), with a
// minimum of 1 token for non-empty text. Actual tokenization varies by
// model; this is only a fallback for metrics.
func EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}

	words := len(strings.Fields(text))
	chars := len([]rune(text))

	byWords := int(float64(words) * 1.3)
	byChars := int(float64(chars) / 3.5)

	estimated := byWords
	if byChars > estimated {
		estimated = byChars
	}
	if estimated < 1 {
		return 1
	}
	return estimated
}
