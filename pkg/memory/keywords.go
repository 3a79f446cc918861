package memory

import (
	"regexp"
	"sort"
	"strings"
)

// MaxKeywords caps the number of extracted keywords per memory.
const MaxKeywords = 10

// stopWords are high-frequency terms excluded from keyword extraction.
// The assistant's user base is Spanish-speaking.
var stopWords = map[string]struct{}{
	"que": {}, "para": {}, "con": {}, "por": {}, "una": {},
	"como": {}, "esta": {}, "pero": {}, "sus": {}, "fue": {},
}

var nonWord = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// ExtractKeywords returns up to MaxKeywords terms from the content,
// most frequent first. Terms are lowercased, stripped of punctuation,
// and must be longer than three characters. Ties keep first-seen order.
func ExtractKeywords(content string) []string {
	counts := make(map[string]int)
	var order []string

	for _, raw := range strings.Fields(strings.ToLower(content)) {
		word := nonWord.ReplaceAllString(raw, "")
		if len(word) <= 3 {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		if counts[word] == 0 {
			order = append(order, word)
		}
		counts[word]++
	}

	rank := make(map[string]int, len(order))
	for i, w := range order {
		rank[w] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		if counts[order[i]] != counts[order[j]] {
			return counts[order[i]] > counts[order[j]]
		}
		return rank[order[i]] < rank[order[j]]
	})

	if len(order) > MaxKeywords {
		order = order[:MaxKeywords]
	}
	return order
}

// Scorer assigns an importance score in [0, 1] to memory content.
type Scorer func(content string) float64

// DefaultScorer scores content by length, one point per hundred
// characters, capped at 1.0.
func DefaultScorer(content string) float64 {
	score := float64(len(content)) / 100.0
	if score > 1.0 {
		return 1.0
	}
	return score
}
