package tools

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/standardbeagle/mydocs/internal/errors"
	"github.com/standardbeagle/mydocs/internal/types"
)

// maxReturnedContent caps the content payload of a single getDocument call
// even when max_content_length asks for more.
const maxReturnedContent = 5 * 1024 * 1024

const truncationNotice = "\n\n[Content truncated due to size limits]\n"

// getDocument retrieves one document by id or path and renders its content in
// the requested format.
func (h *Handlers) getDocument(ctx context.Context, args map[string]any) (any, map[string]any, error) {
	start := time.Now()

	id, hasID, err := selectorID(args)
	if err != nil {
		return nil, nil, err
	}
	path, err := optionalString(args, "file_path", "")
	if err != nil {
		return nil, nil, err
	}
	hasPath := path != ""

	if hasID && hasPath {
		return nil, nil, errors.NewValidationError("document_id",
			"Only one of 'document_id' or 'file_path' should be provided")
	}
	if !hasID && !hasPath {
		return nil, nil, errors.NewValidationError("document_id",
			"Either 'document_id' or 'file_path' parameter is required")
	}
	if hasPath {
		if err := checkLength("file_path", path, 1, maxFilePathLength); err != nil {
			return nil, nil, err
		}
	}

	includeContent, err := optionalBool(args, "include_content", true)
	if err != nil {
		return nil, nil, err
	}
	includeMetadata, err := optionalBool(args, "include_metadata", true)
	if err != nil {
		return nil, nil, err
	}
	format, err := optionalString(args, "format", "json")
	if err != nil {
		return nil, nil, err
	}
	if err := checkEnum("format", format, formatValues); err != nil {
		return nil, nil, err
	}
	maxContentLength, err := optionalInt(args, "max_content_length", 0)
	if err != nil {
		return nil, nil, err
	}
	if maxContentLength < 0 {
		return nil, nil, errors.NewValidationError("max_content_length",
			"max_content_length must be at least 0")
	}

	var doc *types.Document
	retrievalMethod := "by_id"
	if hasID {
		doc, err = h.store.GetByID(ctx, id)
	} else {
		retrievalMethod = "by_path"
		doc, err = h.store.GetByPath(ctx, path)
	}
	if err != nil {
		return nil, nil, err
	}
	if doc == nil {
		derr := errors.NewDocumentError(errors.ErrorTypeNotFound, "get",
			fmt.Errorf("document not found"))
		if hasID {
			derr = derr.WithID(id)
		} else {
			derr = derr.WithFile(path)
		}
		return nil, nil, derr
	}

	data := map[string]any{
		"document_id":      doc.ID,
		"file_path":        doc.FilePath,
		"file_name":        doc.FileName,
		"file_type":        doc.FileType,
		"file_size_bytes":  doc.FileSize,
		"file_hash":        doc.FileHash,
		"created_at":       doc.CreatedAt.UTC().Format(time.RFC3339),
		"modified_at":      doc.ModifiedAt.UTC().Format(time.RFC3339),
		"indexed_at":       doc.IndexedAt.UTC().Format(time.RFC3339),
		"retrieval_method": retrievalMethod,
		"file_stats": map[string]any{
			"size_bytes":  doc.FileSize,
			"size_human":  formatSize(doc.FileSize),
			"created_at":  doc.CreatedAt.UTC().Format(time.RFC3339),
			"modified_at": doc.ModifiedAt.UTC().Format(time.RFC3339),
			"indexed_at":  doc.IndexedAt.UTC().Format(time.RFC3339),
			"hash":        doc.FileHash,
		},
	}

	if includeMetadata {
		data["metadata"] = doc.Metadata
	}
	if includeContent {
		rendered := renderContent(doc, format)
		content, truncated := capContent(rendered, maxContentLength)
		data["content"] = content
		data["content_length"] = len(rendered)
		data["content_truncated"] = truncated
		data["content_format"] = format
		data["content_stats"] = contentStats(doc.Content)
	}

	data["retrieval_time_ms"] = elapsedMs(start)
	return data, map[string]any{"retrieval_method": retrievalMethod}, nil
}

// selectorID reads document_id, reporting whether it was present.
func selectorID(args map[string]any) (int64, bool, error) {
	raw, ok := args["document_id"]
	if !ok || raw == nil {
		return 0, false, nil
	}
	switch v := raw.(type) {
	case float64:
		if v != float64(int64(v)) || v < 1 {
			return 0, true, errors.NewValidationError("document_id",
				"document_id must be a positive integer")
		}
		return int64(v), true, nil
	case string:
		// permit numeric strings since some clients stringify ids
		var id int64
		if _, err := fmt.Sscanf(v, "%d", &id); err != nil || id < 1 {
			return 0, true, errors.NewValidationError("document_id",
				"document_id must be a positive integer")
		}
		return id, true, nil
	default:
		return 0, true, errors.NewValidationError("document_id",
			"document_id must be a positive integer")
	}
}

// renderContent converts stored content into the requested output format.
func renderContent(doc *types.Document, format string) string {
	switch format {
	case "markdown":
		if looksLikeMarkdown(doc.Content) {
			return doc.Content
		}
		return fmt.Sprintf("# %s\n\n```\n%s\n```\n", doc.FileName, doc.Content)
	case "text":
		if looksLikeMarkdown(doc.Content) {
			return stripMarkdown(doc.Content)
		}
		return doc.Content
	default:
		return doc.Content
	}
}

// capContent trims content to the smaller of the requested and built-in
// limits, appending the truncation sentinel when anything was cut.
func capContent(content string, maxContentLength int) (string, bool) {
	limit := maxReturnedContent
	if maxContentLength > 0 && maxContentLength < limit {
		limit = maxContentLength
	}
	if len(content) <= limit {
		return content, false
	}
	return content[:limit] + truncationNotice, true
}

func contentStats(content string) map[string]any {
	lines := strings.Count(content, "\n")
	if content != "" && !strings.HasSuffix(content, "\n") {
		lines++
	}
	return map[string]any{
		"lines": lines,
		"words": len(strings.Fields(content)),
		"chars": utf8.RuneCountInString(content),
	}
}

func formatSize(bytes int64) string {
	switch {
	case bytes >= 1024*1024:
		return fmt.Sprintf("%.1f MB", float64(bytes)/(1024*1024))
	case bytes >= 1024:
		return fmt.Sprintf("%.1f KB", float64(bytes)/1024)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

var markdownIndicators = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^#{1,6}\s+\S`),
	regexp.MustCompile(`\[[^\]]+\]\([^)]+\)`),
	regexp.MustCompile("(?s)```.*```"),
	regexp.MustCompile(`(?m)^[-*+]\s+\S`),
	regexp.MustCompile(`\*\*[^*]+\*\*`),
}

// looksLikeMarkdown reports whether content carries at least two distinct
// markdown constructs. A single hit is too weak; plain text with one
// asterisk pair should not flip the format.
func looksLikeMarkdown(content string) bool {
	hits := 0
	for _, indicator := range markdownIndicators {
		if indicator.MatchString(content) {
			hits++
			if hits >= 2 {
				return true
			}
		}
	}
	return false
}

var (
	stripCodeFence  = regexp.MustCompile("(?s)```\\w*\\n?(.*?)```")
	stripInlineCode = regexp.MustCompile("`([^`]+)`")
	stripImage      = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	stripLink       = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	stripHeader     = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	stripListMarker = regexp.MustCompile(`(?m)^(\s*)[-*+]\s+`)
	stripBlockquote = regexp.MustCompile(`(?m)^>\s?`)
	stripEmphasis   = regexp.MustCompile(`(\*{1,3}|_{1,3})([^*_]+)(\*{1,3}|_{1,3})`)
)

// stripMarkdown removes markup while keeping readable text, including the
// bodies of code blocks.
func stripMarkdown(content string) string {
	out := stripCodeFence.ReplaceAllString(content, "$1")
	out = stripInlineCode.ReplaceAllString(out, "$1")
	out = stripImage.ReplaceAllString(out, "$1")
	out = stripLink.ReplaceAllString(out, "$1")
	out = stripHeader.ReplaceAllString(out, "")
	out = stripListMarker.ReplaceAllString(out, "$1")
	out = stripBlockquote.ReplaceAllString(out, "")
	out = stripEmphasis.ReplaceAllString(out, "$2")
	return out
}
