package tools

import (
	"context"

	"github.com/standardbeagle/mydocs/internal/search"
)

// searchDocuments validates the query parameters and runs them through the
// search engine.
func (h *Handlers) searchDocuments(ctx context.Context, args map[string]any) (any, map[string]any, error) {
	query, err := requireString(args, "query")
	if err != nil {
		return nil, nil, err
	}
	if err := checkLength("query", query, 1, maxQueryLength); err != nil {
		return nil, nil, err
	}

	limit, err := optionalInt(args, "limit", h.cfg.Search.DefaultLimit)
	if err != nil {
		return nil, nil, err
	}
	if err := checkRange("limit", limit, minSearchLimit, maxSearchLimit); err != nil {
		return nil, nil, err
	}
	if limit > h.cfg.Search.MaxResults {
		limit = h.cfg.Search.MaxResults
	}

	rawType, err := optionalString(args, "file_type", "")
	if err != nil {
		return nil, nil, err
	}
	fileType, err := canonicalFileType("file_type", rawType)
	if err != nil {
		return nil, nil, err
	}

	sortBy, err := optionalString(args, "sort_by", "relevance")
	if err != nil {
		return nil, nil, err
	}
	if err := checkEnum("sort_by", sortBy, sortByValues); err != nil {
		return nil, nil, err
	}

	resp, err := h.engine.Search(ctx, search.Options{
		Query:    query,
		Limit:    limit,
		FileType: fileType,
		SortBy:   sortBy,
	})
	if err != nil {
		return nil, nil, err
	}

	metadata := map[string]any{
		"cache_hit": resp.FromCache,
	}
	return resp, metadata, nil
}
