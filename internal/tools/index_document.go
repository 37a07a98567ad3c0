package tools

import (
	"context"
	"time"
)

// indexDocument validates the tool parameters and runs the shared ingest
// path.
func (h *Handlers) indexDocument(ctx context.Context, args map[string]any) (any, map[string]any, error) {
	path, err := requireString(args, "file_path")
	if err != nil {
		return nil, nil, err
	}
	if err := checkLength("file_path", path, 1, maxFilePathLength); err != nil {
		return nil, nil, err
	}
	force, err := optionalBool(args, "force_reindex", false)
	if err != nil {
		return nil, nil, err
	}

	result, err := h.IngestPath(ctx, path, force)
	if err != nil {
		return nil, nil, err
	}

	data := map[string]any{
		"document_id":     result.DocumentID,
		"file_path":       result.FilePath,
		"file_name":       result.FileName,
		"file_type":       result.FileType,
		"file_size_bytes": result.FileSize,
		"content_length":  result.ContentLength,
		"status":          result.Status,
		"indexed_at":      result.IndexedAt.UTC().Format(time.RFC3339),
	}
	if result.Status != "already_indexed" {
		data["keywords_extracted"] = result.KeywordCount
		data["metadata_fields_extracted"] = result.MetadataFields
		data["parse_time_ms"] = result.ParseTimeMs
		data["parser"] = result.Parser
	}
	return data, nil, nil
}
