package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/standardbeagle/mydocs/internal/errors"
	"github.com/standardbeagle/mydocs/internal/types"
)

// ScoredDocument is one candidate from the keyword scoring query, before
// composite re-ranking.
type ScoredDocument struct {
	Document  *types.Document
	BaseScore float64
}

// Ingest writes a document, its metadata rows, and its inverted-index rows in
// one transaction. An existing row for the same path is rewritten in place.
// Returns the document id and whether a new row was created.
func (s *Store) Ingest(ctx context.Context, doc *types.Document, entries []types.IndexEntry) (int64, bool, error) {
	created := false

	err := s.RunInTransaction(ctx, func(tx *sql.Tx) error {
		existing, err := getByPathTx(ctx, tx, doc.FilePath)
		if err != nil {
			return errors.NewStoreError("ingest", err)
		}

		metadataJSON, err := marshalMetadata(doc.Metadata)
		if err != nil {
			return errors.NewStoreError("ingest", err)
		}

		if existing == nil {
			res, err := tx.ExecContext(ctx,
				`INSERT INTO documents (file_path, file_name, file_type, file_size, file_hash,
					created_at, modified_at, indexed_at, content, metadata_json)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				doc.FilePath, doc.FileName, doc.FileType, doc.FileSize, doc.FileHash,
				formatTime(doc.CreatedAt), formatTime(doc.ModifiedAt), formatTime(doc.IndexedAt),
				doc.Content, metadataJSON)
			if err != nil {
				return errors.NewStoreError("ingest", err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return errors.NewStoreError("ingest", err)
			}
			doc.ID = id
			created = true
		} else {
			doc.ID = existing.ID
			_, err := tx.ExecContext(ctx,
				`UPDATE documents SET file_name = ?, file_type = ?, file_size = ?, file_hash = ?,
					modified_at = ?, indexed_at = ?, content = ?, metadata_json = ?
				 WHERE id = ?`,
				doc.FileName, doc.FileType, doc.FileSize, doc.FileHash,
				formatTime(doc.ModifiedAt), formatTime(doc.IndexedAt), doc.Content, metadataJSON,
				doc.ID)
			if err != nil {
				return errors.NewStoreError("ingest", err)
			}
		}

		if err := replaceMetadataTx(ctx, tx, doc.ID, doc.Metadata); err != nil {
			return errors.NewStoreError("ingest", err)
		}
		if err := replaceIndexEntriesTx(ctx, tx, doc.ID, entries); err != nil {
			return errors.NewStoreError("ingest", err)
		}
		return nil
	})
	if err != nil {
		return 0, false, err
	}

	s.sweepExpiredCache(ctx)
	return doc.ID, created, nil
}

func getByPathTx(ctx context.Context, tx *sql.Tx, path string) (*types.Document, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE file_path = ?`, path)
	doc, err := scanDocumentFrom(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return doc, err
}

// replaceMetadataTx rewrites the metadata rows for a document wholesale.
func replaceMetadataTx(ctx context.Context, tx *sql.Tx, docID int64, metadata map[string]string) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM document_metadata WHERE document_id = ?`, docID); err != nil {
		return err
	}
	if len(metadata) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO document_metadata (document_id, key, value) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for key, value := range metadata {
		if key == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, docID, key, value); err != nil {
			return err
		}
	}
	return nil
}

// replaceIndexEntriesTx deletes all index rows for a document and bulk
// inserts the new ones.
func replaceIndexEntriesTx(ctx context.Context, tx *sql.Tx, docID int64, entries []types.IndexEntry) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM search_index WHERE document_id = ?`, docID); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO search_index (document_id, keyword, frequency, relevance_score, position_data)
		 VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i := range entries {
		e := &entries[i]
		if _, err := stmt.ExecContext(ctx, docID, e.Keyword, e.Frequency, e.Relevance, e.PositionsJSON()); err != nil {
			return err
		}
	}
	return nil
}

// IndexEntriesFor returns the stored index rows for one document, keyword
// ascending. Used by tests and diagnostics.
func (s *Store) IndexEntriesFor(ctx context.Context, docID int64) ([]types.IndexEntry, error) {
	rows, err := s.query(ctx, "index_entries_for",
		`SELECT document_id, keyword, frequency, relevance_score, position_data
		 FROM search_index WHERE document_id = ? ORDER BY keyword ASC`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []types.IndexEntry
	for rows.Next() {
		var e types.IndexEntry
		var positions string
		if err := rows.Scan(&e.DocumentID, &e.Keyword, &e.Frequency, &e.Relevance, &positions); err != nil {
			return nil, errors.NewStoreError("index_entries_for", err)
		}
		e.Positions = parsePositions(positions)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreError("index_entries_for", err)
	}
	return entries, nil
}

// ScoreKeywords runs the base relevance query: for every document containing
// any of the keywords, SUM(relevance_score * frequency), best first with
// newest indexing breaking ties. fileType narrows the candidate set; limit
// bounds the fetched rows.
func (s *Store) ScoreKeywords(ctx context.Context, keywords []string, fileType string, limit int) ([]ScoredDocument, error) {
	if len(keywords) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?, ", len(keywords)-1) + "?"
	args := make([]any, 0, len(keywords)+2)
	for _, kw := range keywords {
		args = append(args, kw)
	}

	query := `SELECT d.id, d.file_path, d.file_name, d.file_type, d.file_size, d.file_hash,
			d.created_at, d.modified_at, d.indexed_at, d.content, d.metadata_json,
			SUM(si.relevance_score * si.frequency) AS total_score
		FROM search_index si
		JOIN documents d ON d.id = si.document_id
		WHERE si.keyword IN (` + placeholders + `)`
	if fileType != "" {
		query += ` AND d.file_type = ?`
		args = append(args, fileType)
	}
	query += ` GROUP BY d.id ORDER BY total_score DESC, d.indexed_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.query(ctx, "score_keywords", query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanScoredDocuments(rows, "score_keywords")
}

// SearchFTS matches all terms against the FTS5 mirror, ranked by negated
// bm25 so higher is better. Serves as the fallback when none of the terms
// exist in the keyword index.
func (s *Store) SearchFTS(ctx context.Context, terms []string, fileType string, limit int) ([]ScoredDocument, error) {
	if len(terms) == 0 {
		return nil, nil
	}

	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}

	query := `SELECT d.id, d.file_path, d.file_name, d.file_type, d.file_size, d.file_hash,
			d.created_at, d.modified_at, d.indexed_at, d.content, d.metadata_json,
			-bm25(documents_fts) AS total_score
		FROM documents_fts
		JOIN documents d ON d.id = documents_fts.rowid
		WHERE documents_fts MATCH ?`
	args := []any{strings.Join(quoted, " ")}
	if fileType != "" {
		query += ` AND d.file_type = ?`
		args = append(args, fileType)
	}
	query += ` ORDER BY total_score DESC, d.indexed_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.query(ctx, "search_fts", query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanScoredDocuments(rows, "search_fts")
}

func scanScoredDocuments(rows *sql.Rows, op string) ([]ScoredDocument, error) {
	var scored []ScoredDocument
	for rows.Next() {
		var (
			doc                        types.Document
			created, modified, indexed string
			metadataJSON               string
			score                      float64
		)
		err := rows.Scan(&doc.ID, &doc.FilePath, &doc.FileName, &doc.FileType, &doc.FileSize,
			&doc.FileHash, &created, &modified, &indexed, &doc.Content, &metadataJSON, &score)
		if err != nil {
			return nil, errors.NewStoreError(op, err)
		}
		doc.CreatedAt = parseTime(created)
		doc.ModifiedAt = parseTime(modified)
		doc.IndexedAt = parseTime(indexed)
		if metadataJSON != "" && metadataJSON != "{}" {
			_ = unmarshalMetadata(metadataJSON, &doc.Metadata)
		}
		scored = append(scored, ScoredDocument{Document: &doc, BaseScore: score})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreError(op, err)
	}
	return scored, nil
}

// TagDocument attaches a tag to a document, ignoring duplicates.
func (s *Store) TagDocument(ctx context.Context, docID int64, tag string) error {
	_, err := s.exec(ctx, "tag_document",
		`INSERT OR IGNORE INTO document_tags (document_id, tag, created_at) VALUES (?, ?, ?)`,
		docID, tag, formatTime(time.Now()))
	return err
}

// TagsFor returns the tags attached to a document, alphabetically.
func (s *Store) TagsFor(ctx context.Context, docID int64) ([]string, error) {
	rows, err := s.query(ctx, "tags_for",
		`SELECT tag FROM document_tags WHERE document_id = ? ORDER BY tag ASC`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, errors.NewStoreError("tags_for", err)
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}
