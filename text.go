package retrieval

import (
	"strings"
	"unicode"
)

// sentenceBoundaryRatio is how far into a truncated slice a sentence end must be
// for Truncate to cut there instead of at the raw character limit.
const sentenceBoundaryRatio = 0.8

var quoteReplacer = strings.NewReplacer(
	"“", `"`, "”", `"`,
	"‘", "'", "’", "'",
)

// Prepare cleans text for embedding. The result is lossy: characters outside
// word characters and standard punctuation are dropped, curly quotes become
// straight quotes and whitespace runs collapse to a single space.
func Prepare(text string) string {
	text = quoteReplacer.Replace(text)

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if keepRune(r) {
			b.WriteRune(r)
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// PrepareWithin cleans text and truncates it to at most maxTokens estimated
// tokens. A non-positive maxTokens disables truncation.
func PrepareWithin(text string, maxTokens int) string {
	cleaned := Prepare(text)
	if maxTokens <= 0 || EstimateTokens(cleaned) <= maxTokens {
		return cleaned
	}
	return Truncate(cleaned, maxTokens)
}

// Truncate cuts text to maxTokens*4 characters, backing off to the last
// sentence end (., ? or !) when one lies at or beyond 80% of the cut.
func Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return text
	}
	limit := maxTokens * charsPerToken

	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	cut := runes[:limit]

	last := -1
	for i := len(cut) - 1; i >= 0; i-- {
		if cut[i] == '.' || cut[i] == '?' || cut[i] == '!' {
			last = i
			break
		}
	}
	if last >= 0 && float64(last) >= float64(limit)*sentenceBoundaryRatio {
		cut = cut[:last+1]
	}

	return string(cut)
}

func keepRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		return true
	case unicode.IsSpace(r):
		return true
	}
	return strings.ContainsRune(`.,!?;:-()'"`, r)
}
