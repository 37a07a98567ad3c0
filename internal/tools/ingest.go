package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/standardbeagle/mydocs/internal/errors"
	"github.com/standardbeagle/mydocs/internal/parser"
	"github.com/standardbeagle/mydocs/internal/types"
)

// IngestResult reports one completed ingest.
type IngestResult struct {
	DocumentID     int64
	FilePath       string
	FileName       string
	FileType       string
	FileSize       int64
	ContentLength  int
	Status         string
	KeywordCount   int
	MetadataFields int
	ParseTimeMs    float64
	Parser         string
	IndexedAt      time.Time
}

// IngestPath parses a file and upserts it into the store and inverted index.
// Files whose mtime has not advanced past the stored row short-circuit with
// status already_indexed unless force is set. This is the single ingest path
// shared by the indexDocument tool and the file watcher.
func (h *Handlers) IngestPath(ctx context.Context, path string, force bool) (*IngestResult, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewDocumentError(errors.ErrorTypeNotFound, "index",
				fmt.Errorf("file does not exist")).WithFile(abs)
		}
		return nil, errors.NewDocumentError(errors.ErrorTypeInternal, "index", err).WithFile(abs)
	}
	if info.IsDir() {
		return nil, errors.NewValidationError("file_path", "file_path must point to a file, not a directory")
	}

	ext := strings.ToLower(filepath.Ext(abs))
	if !h.supportedExtension(ext) {
		return nil, errors.NewDocumentError(errors.ErrorTypeUnsupportedType, "index",
			fmt.Errorf("extension %q is not supported (supported: %s)",
				ext, strings.Join(h.cfg.Search.SupportedExts, ", "))).WithFile(abs)
	}
	if info.Size() > h.cfg.Limits.MaxDocumentSize {
		return nil, errors.NewDocumentError(errors.ErrorTypeTooLarge, "index",
			fmt.Errorf("file is %d bytes, limit is %d", info.Size(), h.cfg.Limits.MaxDocumentSize)).WithFile(abs)
	}

	existing, err := h.store.GetByPath(ctx, abs)
	if err != nil {
		return nil, err
	}
	if existing != nil && !force && !info.ModTime().After(existing.ModifiedAt) {
		return &IngestResult{
			DocumentID:    existing.ID,
			FilePath:      existing.FilePath,
			FileName:      existing.FileName,
			FileType:      existing.FileType,
			FileSize:      existing.FileSize,
			ContentLength: len(existing.Content),
			Status:        "already_indexed",
			IndexedAt:     existing.IndexedAt,
		}, nil
	}

	result, err := h.parsers.ParseFile(abs)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(result.Content) == "" {
		return nil, errors.NewDocumentError(errors.ErrorTypeEmptyContent, "index",
			fmt.Errorf("file contains no indexable content")).WithFile(abs)
	}

	now := time.Now()
	doc := &types.Document{
		FilePath:   abs,
		FileName:   result.FileInfo.Name,
		FileType:   strings.TrimPrefix(result.FileInfo.Ext, "."),
		FileSize:   result.FileInfo.Size,
		FileHash:   result.FileInfo.Hash,
		CreatedAt:  now,
		ModifiedAt: result.FileInfo.ModifiedAt,
		IndexedAt:  now,
		Content:    result.Content,
		Metadata:   buildMetadata(result),
	}
	if existing != nil {
		doc.ID = existing.ID
		doc.CreatedAt = existing.CreatedAt
	}

	id, created, err := h.engine.Index(ctx, doc)
	if err != nil {
		return nil, err
	}

	status := "reindexed"
	if created {
		status = "indexed"
	}
	h.log.Info("indexed %s (id=%d, %s, %d keywords)", abs, id, status, len(result.Keywords))

	return &IngestResult{
		DocumentID:     id,
		FilePath:       abs,
		FileName:       doc.FileName,
		FileType:       doc.FileType,
		FileSize:       doc.FileSize,
		ContentLength:  len(doc.Content),
		Status:         status,
		KeywordCount:   len(result.Keywords),
		MetadataFields: len(doc.Metadata),
		ParseTimeMs:    result.Stats.ParseTimeMs,
		Parser:         result.Stats.ParserName,
		IndexedAt:      now,
	}, nil
}

// supportedExtension reports whether a file extension is indexable.
func (h *Handlers) supportedExtension(ext string) bool {
	for _, allowed := range h.cfg.Search.SupportedExts {
		if ext == allowed {
			return true
		}
	}
	return false
}

// IndexingStatus reports whether a path has a stored document and whether
// the file on disk is newer than it.
func (h *Handlers) IndexingStatus(ctx context.Context, path string) (indexed, needsReindex bool, err error) {
	abs, aerr := filepath.Abs(path)
	if aerr != nil {
		abs = path
	}
	existing, err := h.store.GetByPath(ctx, abs)
	if err != nil || existing == nil {
		return false, false, err
	}
	info, serr := os.Stat(abs)
	if serr != nil {
		return true, false, nil
	}
	return true, info.ModTime().After(existing.ModifiedAt), nil
}

// RemovePath deletes the document stored for a path. Unknown paths are not
// an error; the watcher sees deletes for files that were never indexed.
func (h *Handlers) RemovePath(ctx context.Context, path string) (bool, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	removed, err := h.engine.Remove(ctx, abs)
	if err != nil {
		return false, err
	}
	if removed {
		h.log.Info("removed document for %s", abs)
	}
	return removed, nil
}

// MovePath rewrites a document's stored path and reindexes the content at
// the new location. A move of an unknown path falls back to a plain ingest.
func (h *Handlers) MovePath(ctx context.Context, oldPath, newPath string) (*IngestResult, error) {
	oldAbs, err := filepath.Abs(oldPath)
	if err != nil {
		oldAbs = oldPath
	}
	newAbs, err := filepath.Abs(newPath)
	if err != nil {
		newAbs = newPath
	}

	existing, err := h.store.GetByPath(ctx, oldAbs)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		newName := filepath.Base(newAbs)
		newType := strings.TrimPrefix(strings.ToLower(filepath.Ext(newAbs)), ".")
		if err := h.store.UpdateDocumentPath(ctx, existing.ID, newAbs, newName, newType); err != nil {
			return nil, err
		}
		h.log.Info("moved document %d: %s -> %s", existing.ID, oldAbs, newAbs)
	}
	return h.IngestPath(ctx, newAbs, true)
}

// buildMetadata merges parser metadata (prefixed so callers can tell its
// origin) with the content hash and parse facts the service adds itself.
func buildMetadata(result *parser.Result) map[string]string {
	out := make(map[string]string)
	for key, value := range parser.NormalizeMetadata(result.Metadata) {
		out["parser_"+key] = value
	}
	out["content_hash"] = result.FileInfo.Hash
	out["parser_name"] = result.Stats.ParserName
	return out
}
