package search

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/standardbeagle/mydocs/internal/errors"
	"github.com/standardbeagle/mydocs/internal/logging"
	"github.com/standardbeagle/mydocs/internal/storage"
	"github.com/standardbeagle/mydocs/internal/types"
)

// Composite re-ranking weights. Base keyword relevance dominates; title,
// body occurrences, and recency refine the order.
const (
	weightBase    = 0.4
	weightTitle   = 0.3
	weightContent = 0.2
	weightRecency = 0.1

	titleHitScore  = 10.0
	titleHitCap    = 30.0
	contentHitCap  = 15.0
	perTermHitCap  = 5.0
	perOccurrence  = 0.5
	snippetMaxLen  = 200
	candidateRatio = 2
)

// Options are the validated searchDocuments parameters.
type Options struct {
	Query    string
	Limit    int
	FileType string
	SortBy   string
}

// Engine executes queries against the store's inverted index with a
// two-level result cache.
type Engine struct {
	store   *storage.Store
	cache   *ResultCache
	log     *logging.Logger
	ttl     time.Duration
	caching bool
}

// NewEngine wires the engine to its store. ttl bounds result staleness;
// caching false disables both cache layers.
func NewEngine(store *storage.Store, ttl time.Duration, caching bool, log *logging.Logger) *Engine {
	return &Engine{
		store:   store,
		cache:   NewResultCache(ttl),
		log:     log,
		ttl:     ttl,
		caching: caching,
	}
}

// Close releases the in-memory cache sweeper.
func (e *Engine) Close() {
	e.cache.Close()
}

// Index tokenizes a document and writes its content, metadata, and index
// rows in one transaction. Returns the id and whether the row is new.
func (e *Engine) Index(ctx context.Context, doc *types.Document) (int64, bool, error) {
	entries := BuildIndexEntries(doc.ID, doc.Content)
	id, created, err := e.store.Ingest(ctx, doc, entries)
	if err != nil {
		return 0, false, err
	}
	// document writes bound cache staleness to the TTL
	e.cache.Invalidate()
	return id, created, nil
}

// Remove deletes a document by path and invalidates the in-memory cache.
func (e *Engine) Remove(ctx context.Context, path string) (bool, error) {
	removed, err := e.store.DeleteDocumentByPath(ctx, path)
	if err != nil {
		return false, err
	}
	if removed {
		e.cache.Invalidate()
	}
	return removed, nil
}

// Search runs the full query path: normalize, cache lookup, base scoring,
// composite re-ranking, sort, trim, snippet enrichment, cache insert.
func (e *Engine) Search(ctx context.Context, opts Options) (*types.SearchResponse, error) {
	start := time.Now()

	terms := NormalizeQuery(opts.Query)
	if len(terms) == 0 {
		return nil, errors.NewQueryError(opts.Query,
			fmt.Errorf("no searchable terms after normalization"))
	}
	normalized := strings.Join(terms, " ")

	resp := &types.SearchResponse{
		Results:        []types.SearchResult{},
		QueryProcessed: normalized,
		FileTypeFilter: opts.FileType,
		SortBy:         opts.SortBy,
	}

	key := QueryKey(normalized, opts.Limit, opts.FileType, opts.SortBy)
	if e.caching {
		if cached, ok := e.lookupCache(ctx, key); ok {
			if err := json.Unmarshal([]byte(cached), &resp.Results); err == nil {
				resp.FromCache = true
				resp.TotalFound = len(resp.Results)
				resp.ReturnedCount = len(resp.Results)
				resp.SearchTimeMs = elapsedMs(start)
				return resp, nil
			}
			e.log.Warning("dropping undecodable cache entry %s", key)
		}
	}

	candidates, err := e.store.ScoreKeywords(ctx, terms, opts.FileType, opts.Limit*candidateRatio)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		// the keyword index drops stop words and short tokens; the FTS
		// mirror indexes the raw content and file name
		candidates, err = e.store.SearchFTS(ctx, terms, opts.FileType, opts.Limit*candidateRatio)
		if err != nil {
			e.log.Warning("full-text fallback failed: %v", err)
			candidates = nil
		}
	}

	ranked := make([]rankedDocument, 0, len(candidates))
	now := time.Now()
	for _, c := range candidates {
		ranked = append(ranked, rankedDocument{
			doc:   c.Document,
			score: compositeScore(c, terms, now),
		})
	}
	sortRanked(ranked, opts.SortBy)

	resp.TotalFound = len(ranked)
	if len(ranked) > opts.Limit {
		ranked = ranked[:opts.Limit]
	}

	for _, r := range ranked {
		resp.Results = append(resp.Results, types.SearchResult{
			DocumentID:     r.doc.ID,
			FilePath:       r.doc.FilePath,
			FileName:       r.doc.FileName,
			FileType:       r.doc.FileType,
			FileSizeBytes:  r.doc.FileSize,
			RelevanceScore: round3(r.score),
			IndexedAt:      r.doc.IndexedAt.UTC().Format(time.RFC3339),
			ModifiedAt:     r.doc.ModifiedAt.UTC().Format(time.RFC3339),
			ContentSnippet: GenerateSnippet(r.doc.Content, terms),
			Metadata:       r.doc.Metadata,
		})
	}
	resp.ReturnedCount = len(resp.Results)

	if e.caching {
		e.insertCache(ctx, key, normalized, resp.Results)
	}

	resp.SearchTimeMs = elapsedMs(start)
	return resp, nil
}

func (e *Engine) lookupCache(ctx context.Context, key string) (string, bool) {
	if cached, ok := e.cache.Get(key); ok {
		if err := e.store.TouchCache(ctx, key); err != nil {
			e.log.Warning("failed to bump cache hit count: %v", err)
		}
		return cached, true
	}
	entry, err := e.store.GetCachedResults(ctx, key)
	if err != nil {
		e.log.Warning("persistent cache lookup failed: %v", err)
		return "", false
	}
	if entry == nil {
		return "", false
	}
	// refresh the in-memory layer on a persistent hit
	e.cache.Put(key, entry.Results)
	return entry.Results, true
}

func (e *Engine) insertCache(ctx context.Context, key, query string, results []types.SearchResult) {
	serialized, err := json.Marshal(results)
	if err != nil {
		e.log.Warning("failed to serialize results for cache: %v", err)
		return
	}
	e.cache.Put(key, string(serialized))
	if err := e.store.CacheResults(ctx, key, query, string(serialized), e.ttl); err != nil {
		e.log.Warning("persistent cache insert failed: %v", err)
	}
}

type rankedDocument struct {
	doc   *types.Document
	score float64
}

// compositeScore blends the base index score with title, content, and
// recency bonuses.
func compositeScore(c storage.ScoredDocument, terms []string, now time.Time) float64 {
	titleScore := 0.0
	nameLower := strings.ToLower(c.Document.FileName)
	for _, term := range terms {
		if strings.Contains(nameLower, term) {
			titleScore += titleHitScore
		}
	}
	if titleScore > titleHitCap {
		titleScore = titleHitCap
	}

	contentScore := 0.0
	contentLower := strings.ToLower(c.Document.Content)
	for _, term := range terms {
		occurrences := strings.Count(contentLower, term)
		contentScore += min(perTermHitCap, float64(occurrences)*perOccurrence)
	}
	if contentScore > contentHitCap {
		contentScore = contentHitCap
	}

	return weightBase*c.BaseScore +
		weightTitle*titleScore +
		weightContent*contentScore +
		weightRecency*recencyScore(c.Document.IndexedAt, now)
}

// recencyScore buckets indexing age: a week, a month, a quarter, older.
func recencyScore(indexedAt time.Time, now time.Time) float64 {
	if indexedAt.IsZero() {
		return 0
	}
	age := now.Sub(indexedAt)
	switch {
	case age <= 7*24*time.Hour:
		return 5
	case age <= 30*24*time.Hour:
		return 3
	case age <= 90*24*time.Hour:
		return 1
	default:
		return 0.5
	}
}

func sortRanked(ranked []rankedDocument, sortBy string) {
	switch sortBy {
	case "date":
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].doc.IndexedAt.After(ranked[j].doc.IndexedAt)
		})
	case "name":
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].doc.FileName < ranked[j].doc.FileName
		})
	default:
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].score > ranked[j].score
		})
	}
}

// GenerateSnippet returns at most snippetMaxLen characters centered on the
// first occurrence of any query term, with terms wrapped in ** markers and
// ellipses marking truncation.
func GenerateSnippet(content string, terms []string) string {
	if content == "" {
		return ""
	}

	contentLower := strings.ToLower(content)
	first := -1
	for _, term := range terms {
		if idx := strings.Index(contentLower, term); idx >= 0 && (first == -1 || idx < first) {
			first = idx
		}
	}

	start, end := 0, len(content)
	if first >= 0 {
		start = first - snippetMaxLen/2
		if start < 0 {
			start = 0
		}
	}
	if end-start > snippetMaxLen {
		end = start + snippetMaxLen
	}
	snippet := content[start:end]

	for _, term := range terms {
		snippet = highlightTerm(snippet, term)
	}

	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(content) {
		snippet = snippet + "..."
	}
	return snippet
}

// highlightTerm wraps every case-insensitive occurrence of term in **.
func highlightTerm(s, term string) string {
	if term == "" {
		return s
	}
	var b strings.Builder
	lower := strings.ToLower(s)
	termLower := strings.ToLower(term)
	for {
		idx := strings.Index(lower, termLower)
		if idx < 0 {
			b.WriteString(s)
			break
		}
		b.WriteString(s[:idx])
		b.WriteString("**")
		b.WriteString(s[idx : idx+len(term)])
		b.WriteString("**")
		s = s[idx+len(term):]
		lower = lower[idx+len(termLower):]
	}
	return b.String()
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

func round3(f float64) float64 {
	return float64(int64(f*1000+0.5)) / 1000
}
