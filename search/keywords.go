package search

import "strings"

// KeywordExtractor derives the keywords metadata stored with each record.
type KeywordExtractor interface {
	Extract(text string) []string
}

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {},
}

// StopWordExtractor keeps the first Max lowercase words longer than three
// characters that are not stop words.
type StopWordExtractor struct {
	Max int
}

// Extract implements KeywordExtractor.
func (e StopWordExtractor) Extract(text string) []string {
	limit := e.Max
	if limit <= 0 {
		limit = 10
	}

	keywords := make([]string, 0, limit)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		if len(word) <= 3 {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		keywords = append(keywords, word)
		if len(keywords) == limit {
			break
		}
	}
	return keywords
}

var _ KeywordExtractor = StopWordExtractor{}
