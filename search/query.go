package search

import (
	"strings"
)

var DefaultFillerWords = []string{"latest", "solutions"}

// QueryCleaner strips words that only describe the kind of answer wanted and
// would otherwise narrow the corpus match.
type QueryCleaner struct {
	filler map[string]bool
}

func NewQueryCleaner(fillerWords []string) *QueryCleaner {
	filler := make(map[string]bool, len(fillerWords))
	for _, w := range fillerWords {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			filler[w] = true
		}
	}
	return &QueryCleaner{filler: filler}
}

func (q *QueryCleaner) Clean(query string) string {
	words := strings.Fields(query)
	kept := make([]string, 0, len(words))
	for _, word := range words {
		if q.filler[strings.ToLower(word)] {
			continue
		}
		kept = append(kept, word)
	}
	if len(kept) == 0 {
		return strings.Join(words, " ")
	}
	return strings.Join(kept, " ")
}

// normalizeSpace collapses runs of whitespace, including newlines from the
// feed's hard-wrapped abstracts, into single spaces.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
