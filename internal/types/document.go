package types

import (
	"encoding/json"
	"time"
)

// Document is the canonical record of one ingested file. The store assigns
// ID on first insert; it is stable for the lifetime of the row.
type Document struct {
	ID         int64             `json:"id"`
	FilePath   string            `json:"file_path"`
	FileName   string            `json:"file_name"`
	FileType   string            `json:"file_type"`
	FileSize   int64             `json:"file_size"`
	FileHash   string            `json:"file_hash"`
	CreatedAt  time.Time         `json:"created_at"`
	ModifiedAt time.Time         `json:"modified_at"`
	IndexedAt  time.Time         `json:"indexed_at"`
	Content    string            `json:"content"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// IndexEntry is one row of the inverted index. Unique per (DocumentID, Keyword).
// Frequency always equals len(Positions) and Relevance is clamped to [0,1].
type IndexEntry struct {
	DocumentID int64   `json:"document_id"`
	Keyword    string  `json:"keyword"`
	Frequency  int     `json:"frequency"`
	Positions  []int   `json:"positions"`
	Relevance  float64 `json:"relevance"`
}

// PositionsJSON serializes the token positions for the position_data column.
func (e *IndexEntry) PositionsJSON() string {
	b, err := json.Marshal(e.Positions)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// QueryCacheEntry is one persisted row of the search result cache.
type QueryCacheEntry struct {
	ID        int64     `json:"id"`
	QueryHash string    `json:"query_hash"`
	Query     string    `json:"query"`
	Results   string    `json:"results"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	HitCount  int       `json:"hit_count"`
}

// Expired reports whether the entry is past its expiry at the given instant.
func (c *QueryCacheEntry) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// SearchResult is one ranked hit returned by searchDocuments.
type SearchResult struct {
	DocumentID     int64             `json:"document_id"`
	FilePath       string            `json:"file_path"`
	FileName       string            `json:"file_name"`
	FileType       string            `json:"file_type"`
	FileSizeBytes  int64             `json:"file_size_bytes"`
	RelevanceScore float64           `json:"relevance_score"`
	IndexedAt      string            `json:"indexed_at"`
	ModifiedAt     string            `json:"modified_at"`
	ContentSnippet string            `json:"content_snippet"`
	Metadata       map[string]string `json:"metadata"`
}

// SearchResponse is the data payload of a searchDocuments call.
type SearchResponse struct {
	Results        []SearchResult `json:"results"`
	TotalFound     int            `json:"total_found"`
	ReturnedCount  int            `json:"returned_count"`
	SearchTimeMs   float64        `json:"search_time_ms"`
	QueryProcessed string         `json:"query_processed"`
	FromCache      bool           `json:"from_cache"`
	FileTypeFilter string         `json:"file_type_filter,omitempty"`
	SortBy         string         `json:"sort_by,omitempty"`
}

// StoreStatistics summarizes the persistent store for diagnostics.
type StoreStatistics struct {
	DocumentCount  int64 `json:"document_count"`
	MetadataRows   int64 `json:"metadata_rows"`
	IndexEntries   int64 `json:"index_entries"`
	CacheEntries   int64 `json:"cache_entries"`
	DatabaseBytes  int64 `json:"database_bytes"`
	SchemaVersion  int   `json:"schema_version"`
	DistinctTypes  int64 `json:"distinct_types"`
	NewestIndexing any   `json:"newest_indexing,omitempty"`
}
