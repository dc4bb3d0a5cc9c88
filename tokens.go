package retrieval

import "unicode/utf8"

// charsPerToken is the heuristic ratio used by EstimateTokens and Truncate.
const charsPerToken = 4

// EstimateTokens estimates the token count for a given text as ceil(chars / 4).
// It is an upper-bound heuristic, not a tokenizer.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + charsPerToken - 1) / charsPerToken
}
