package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/standardbeagle/mydocs/internal/errors"
	"github.com/standardbeagle/mydocs/internal/types"
)

// timeFormat is a fixed-width UTC layout so stored timestamps compare
// correctly both lexicographically (SQL CHECKs, ORDER BY) and after parsing.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

const documentColumns = `id, file_path, file_name, file_type, file_size, file_hash,
	created_at, modified_at, indexed_at, content, metadata_json`

// CreateDocument inserts a new document row and returns its id. Fails with a
// Duplicate error when the path is already present.
func (s *Store) CreateDocument(ctx context.Context, doc *types.Document) (int64, error) {
	metadataJSON, err := marshalMetadata(doc.Metadata)
	if err != nil {
		return 0, errors.NewStoreError("create_document", err)
	}

	res, err := s.exec(ctx, "create_document",
		`INSERT INTO documents (file_path, file_name, file_type, file_size, file_hash,
			created_at, modified_at, indexed_at, content, metadata_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.FilePath, doc.FileName, doc.FileType, doc.FileSize, doc.FileHash,
		formatTime(doc.CreatedAt), formatTime(doc.ModifiedAt), formatTime(doc.IndexedAt),
		doc.Content, metadataJSON)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, errors.NewDocumentError(errors.ErrorTypeDuplicate, "create",
				fmt.Errorf("document already exists")).WithFile(doc.FilePath)
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.NewStoreError("create_document", err)
	}
	doc.ID = id
	return id, nil
}

// UpdateDocument rewrites a document row by id. Fails with NotFound when the
// id does not exist.
func (s *Store) UpdateDocument(ctx context.Context, doc *types.Document) error {
	metadataJSON, err := marshalMetadata(doc.Metadata)
	if err != nil {
		return errors.NewStoreError("update_document", err)
	}

	res, err := s.exec(ctx, "update_document",
		`UPDATE documents SET file_path = ?, file_name = ?, file_type = ?, file_size = ?,
			file_hash = ?, modified_at = ?, indexed_at = ?, content = ?, metadata_json = ?
		 WHERE id = ?`,
		doc.FilePath, doc.FileName, doc.FileType, doc.FileSize, doc.FileHash,
		formatTime(doc.ModifiedAt), formatTime(doc.IndexedAt), doc.Content, metadataJSON,
		doc.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.NewStoreError("update_document", err)
	}
	if n == 0 {
		return errors.NewDocumentError(errors.ErrorTypeNotFound, "update",
			fmt.Errorf("document %d not found", doc.ID)).WithID(doc.ID)
	}
	return nil
}

// UpdateDocumentPath rewrites only the path-derived columns. Used by the
// watcher on move events before reindexing refreshes everything else.
func (s *Store) UpdateDocumentPath(ctx context.Context, id int64, newPath, newName, newType string) error {
	res, err := s.exec(ctx, "update_document_path",
		`UPDATE documents SET file_path = ?, file_name = ?, file_type = ? WHERE id = ?`,
		newPath, newName, newType, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return errors.NewDocumentError(errors.ErrorTypeNotFound, "update_path",
			fmt.Errorf("document %d not found", id)).WithID(id)
	}
	return nil
}

// GetByID fetches one document, or nil when absent.
func (s *Store) GetByID(ctx context.Context, id int64) (*types.Document, error) {
	row := s.queryRow(ctx, "get_by_id",
		`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	return scanDocument(row)
}

// GetByPath fetches one document by its unique file path, or nil when absent.
func (s *Store) GetByPath(ctx context.Context, path string) (*types.Document, error) {
	row := s.queryRow(ctx, "get_by_path",
		`SELECT `+documentColumns+` FROM documents WHERE file_path = ?`, path)
	return scanDocument(row)
}

// ListByType returns documents of one file type, newest indexed first unless
// another order column is requested.
func (s *Store) ListByType(ctx context.Context, fileType string, limit, offset int, order string) ([]*types.Document, error) {
	orderClause := "indexed_at DESC"
	switch order {
	case "name":
		orderClause = "file_name ASC"
	case "modified":
		orderClause = "modified_at DESC"
	}
	rows, err := s.query(ctx, "list_by_type",
		`SELECT `+documentColumns+` FROM documents WHERE file_type = ?
		 ORDER BY `+orderClause+` LIMIT ? OFFSET ?`,
		fileType, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocuments(rows)
}

// ListRecent returns the most recently indexed documents.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]*types.Document, error) {
	rows, err := s.query(ctx, "list_recent",
		`SELECT `+documentColumns+` FROM documents ORDER BY indexed_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocuments(rows)
}

// CountDocuments returns the number of live document rows.
func (s *Store) CountDocuments(ctx context.Context) (int64, error) {
	var n int64
	if err := s.queryRow(ctx, "count_documents", `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, errors.NewStoreError("count_documents", err)
	}
	return n, nil
}

// DeleteDocument removes a document; metadata and index rows cascade, and
// expired cache rows are swept in the same pass.
func (s *Store) DeleteDocument(ctx context.Context, id int64) error {
	res, err := s.exec(ctx, "delete_document", `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return errors.NewDocumentError(errors.ErrorTypeNotFound, "delete",
			fmt.Errorf("document %d not found", id)).WithID(id)
	}
	s.sweepExpiredCache(ctx)
	return nil
}

// DeleteDocumentByPath removes a document by path. Returns false when the
// path was not indexed.
func (s *Store) DeleteDocumentByPath(ctx context.Context, path string) (bool, error) {
	res, err := s.exec(ctx, "delete_by_path", `DELETE FROM documents WHERE file_path = ?`, path)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.sweepExpiredCache(ctx)
	}
	return n > 0, nil
}

// GetStatistics summarizes the store for diagnostics.
func (s *Store) GetStatistics(ctx context.Context) (*types.StoreStatistics, error) {
	stats := &types.StoreStatistics{}

	counts := []struct {
		stmt string
		dst  *int64
	}{
		{`SELECT COUNT(*) FROM documents`, &stats.DocumentCount},
		{`SELECT COUNT(*) FROM document_metadata`, &stats.MetadataRows},
		{`SELECT COUNT(*) FROM search_index`, &stats.IndexEntries},
		{`SELECT COUNT(*) FROM search_cache`, &stats.CacheEntries},
		{`SELECT COUNT(DISTINCT file_type) FROM documents`, &stats.DistinctTypes},
	}
	for _, c := range counts {
		if err := s.queryRow(ctx, "statistics", c.stmt).Scan(c.dst); err != nil {
			return nil, errors.NewStoreError("statistics", err)
		}
	}

	var newest sql.NullString
	if err := s.queryRow(ctx, "statistics",
		`SELECT MAX(indexed_at) FROM documents`).Scan(&newest); err == nil && newest.Valid {
		stats.NewestIndexing = newest.String
	}

	version, err := s.SchemaVersion(ctx)
	if err != nil {
		return nil, err
	}
	stats.SchemaVersion = version

	if info, err := os.Stat(s.dbPath); err == nil {
		stats.DatabaseBytes = info.Size()
	}
	return stats, nil
}

func marshalMetadata(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocumentFrom(sc rowScanner) (*types.Document, error) {
	var (
		doc                        types.Document
		created, modified, indexed string
		metadataJSON               string
	)
	err := sc.Scan(&doc.ID, &doc.FilePath, &doc.FileName, &doc.FileType, &doc.FileSize,
		&doc.FileHash, &created, &modified, &indexed, &doc.Content, &metadataJSON)
	if err != nil {
		return nil, err
	}
	doc.CreatedAt = parseTime(created)
	doc.ModifiedAt = parseTime(modified)
	doc.IndexedAt = parseTime(indexed)
	if metadataJSON != "" && metadataJSON != "{}" {
		if err := json.Unmarshal([]byte(metadataJSON), &doc.Metadata); err != nil {
			return nil, err
		}
	}
	return &doc, nil
}

func scanDocument(row *sql.Row) (*types.Document, error) {
	doc, err := scanDocumentFrom(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewStoreError("scan_document", err)
	}
	return doc, nil
}

func scanDocuments(rows *sql.Rows) ([]*types.Document, error) {
	var docs []*types.Document
	for rows.Next() {
		doc, err := scanDocumentFrom(rows)
		if err != nil {
			return nil, errors.NewStoreError("scan_documents", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreError("scan_documents", err)
	}
	return docs, nil
}

func unmarshalMetadata(s string, dst *map[string]string) error {
	return json.Unmarshal([]byte(s), dst)
}

func parsePositions(s string) []int {
	var positions []int
	if err := json.Unmarshal([]byte(s), &positions); err != nil {
		return nil
	}
	return positions
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
