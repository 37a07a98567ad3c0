// Package search owns ingest-time index construction and the query path:
// normalization, cache lookup, base scoring, composite re-ranking, snippet
// generation, and cache insertion.
package search

import (
	"regexp"
	"sort"
	"strings"

	"github.com/standardbeagle/mydocs/internal/types"
)

// tokenPattern matches index-worthy words: three or more letters.
var tokenPattern = regexp.MustCompile(`\b[a-zA-Z]{3,}\b`)

// indexStopWords are excluded from the inverted index.
var indexStopWords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"the", "and", "or", "but", "in", "on", "at", "to", "for", "of", "with",
		"by", "from", "this", "that", "these", "those", "a", "an", "is", "are",
		"was", "were", "be", "been", "being", "have", "has", "had", "do", "does",
		"did", "will", "would", "could", "should", "may", "might", "can", "shall",
		"his", "her", "its", "their", "our", "my", "your", "he", "she", "it",
		"they", "we", "i", "you", "me", "us", "him", "them", "who", "what",
		"when", "where", "why", "how", "which", "whom", "whose", "all", "any",
		"each", "few", "more", "most", "other", "some", "such", "no", "nor",
		"not", "only", "own", "same", "so", "than", "too", "very", "just", "now",
	} {
		indexStopWords[w] = struct{}{}
	}
}

// shortTermWhitelist are meaningful terms below the usual length floor.
var shortTermWhitelist = map[string]struct{}{
	"c": {}, "r": {}, "go": {}, "js": {},
	"ai": {}, "ml": {}, "ui": {}, "ux": {},
}

// BuildIndexEntries tokenizes extracted text into inverted-index rows.
// Positions are token offsets in the raw token stream, so stop words still
// advance the counter. Relevance is tf scaled by a frequency bonus, clamped
// to [0,1].
func BuildIndexEntries(docID int64, content string) []types.IndexEntry {
	tokens := tokenPattern.FindAllString(strings.ToLower(content), -1)
	if len(tokens) == 0 {
		return nil
	}

	positions := make(map[string][]int)
	for pos, token := range tokens {
		if _, stop := indexStopWords[token]; stop {
			continue
		}
		positions[token] = append(positions[token], pos)
	}

	totalWords := float64(len(tokens))
	entries := make([]types.IndexEntry, 0, len(positions))
	for keyword, posList := range positions {
		frequency := len(posList)
		tf := float64(frequency) / totalWords
		relevance := tf * (1 + min(1.0, float64(frequency)/5.0))
		if relevance > 1.0 {
			relevance = 1.0
		}
		entries = append(entries, types.IndexEntry{
			DocumentID: docID,
			Keyword:    keyword,
			Frequency:  frequency,
			Positions:  posList,
			Relevance:  relevance,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Keyword < entries[j].Keyword })
	return entries
}

// NormalizeQuery collapses whitespace, lowercases, and drops terms shorter
// than two characters unless whitelisted. An empty result means the query
// cannot be executed.
func NormalizeQuery(query string) []string {
	var terms []string
	for _, term := range strings.Fields(strings.ToLower(query)) {
		if len(term) < 2 {
			if _, ok := shortTermWhitelist[term]; !ok {
				continue
			}
		}
		terms = append(terms, term)
	}
	return terms
}
