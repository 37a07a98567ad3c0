package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildIndexEntriesInvariants(t *testing.T) {
	entries := BuildIndexEntries(1, "the quick brown fox jumps over the lazy dog quick quick")

	require.NotEmpty(t, entries)
	for _, e := range entries {
		assert.Equal(t, e.Frequency, len(e.Positions), "frequency must equal position count for %q", e.Keyword)
		assert.GreaterOrEqual(t, e.Relevance, 0.0, "relevance below zero for %q", e.Keyword)
		assert.LessOrEqual(t, e.Relevance, 1.0, "relevance above one for %q", e.Keyword)
		assert.Positive(t, e.Frequency)
	}
}

func TestBuildIndexEntriesStopWordsAdvancePositions(t *testing.T) {
	// "the" is a stop word but still occupies token offset 0, so "quick"
	// lands at offset 1.
	entries := BuildIndexEntries(1, "the quick fox")

	byKeyword := make(map[string][]int)
	for _, e := range entries {
		byKeyword[e.Keyword] = e.Positions
	}
	assert.NotContains(t, byKeyword, "the")
	assert.Equal(t, []int{1}, byKeyword["quick"])
	assert.Equal(t, []int{2}, byKeyword["fox"])
}

func TestBuildIndexEntriesDropsFunctionWords(t *testing.T) {
	entries := BuildIndexEntries(1, "they said their deployment was very slow when other jobs ran")

	keywords := make([]string, 0, len(entries))
	for _, e := range entries {
		keywords = append(keywords, e.Keyword)
	}
	for _, stop := range []string{"they", "their", "was", "very", "when", "other"} {
		assert.NotContains(t, keywords, stop)
	}
	assert.Contains(t, keywords, "deployment")
	assert.Contains(t, keywords, "slow")
	assert.Contains(t, keywords, "jobs")
	assert.Contains(t, keywords, "ran")
}

func TestBuildIndexEntriesSortedAndDeterministic(t *testing.T) {
	first := BuildIndexEntries(1, "zebra apple zebra mango apple apple")
	second := BuildIndexEntries(1, "zebra apple zebra mango apple apple")

	require.Equal(t, first, second)
	for i := 1; i < len(first); i++ {
		assert.Less(t, first[i-1].Keyword, first[i].Keyword)
	}
}

func TestBuildIndexEntriesSkipsShortTokens(t *testing.T) {
	entries := BuildIndexEntries(1, "go is ok but golang works")

	keywords := make([]string, 0, len(entries))
	for _, e := range entries {
		keywords = append(keywords, e.Keyword)
	}
	assert.NotContains(t, keywords, "go")
	assert.NotContains(t, keywords, "ok")
	assert.Contains(t, keywords, "golang")
	assert.Contains(t, keywords, "works")
}

func TestBuildIndexEntriesEmptyContent(t *testing.T) {
	assert.Nil(t, BuildIndexEntries(1, ""))
	assert.Nil(t, BuildIndexEntries(1, "a b 12 !!"))
}

func TestNormalizeQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"lowercases and splits", "Meeting NOTES", []string{"meeting", "notes"}},
		{"drops single chars", "x meeting", []string{"meeting"}},
		{"keeps whitelisted short terms", "go ml notes", []string{"go", "ml", "notes"}},
		{"whitelisted single char", "c tutorial", []string{"c", "tutorial"}},
		{"collapses whitespace", "  api   design  ", []string{"api", "design"}},
		{"nothing searchable", "x y !", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeQuery(tt.query))
		})
	}
}
