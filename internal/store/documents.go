package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/foiacorpus/corpus/internal/mime"
)

// UpsertDocument creates a document for (source_id, source_url) if none
// exists with at least one version, else returns the existing row
// (spec 3: a document with zero versions is incomplete and excluded from
// by-URL existence checks, so a crawl that starts and then fails before any
// version is attached does not permanently squat on the URL).
func (d *DB) UpsertDocument(ctx context.Context, doc *Document) (*Document, error) {
	existing, err := d.findDocumentByURL(ctx, doc.SourceID, doc.SourceURL)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	if doc.ID == "" {
		id, err := GenID()
		if err != nil {
			return nil, fmt.Errorf("generate document id: %w", err)
		}
		doc.ID = id
	}
	if doc.Status == "" {
		doc.Status = StatusPending
	}
	if doc.CategoryID == "" {
		doc.CategoryID = "other"
	}

	metaJSON, err := marshalMetadata(doc.Metadata)
	if err != nil {
		return nil, err
	}

	_, err = d.backend.Exec(ctx, `
		INSERT INTO documents (id, source_id, title, source_url, status, metadata, category_id, discovery_method, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.SourceID, doc.Title, doc.SourceURL, doc.Status, metaJSON, doc.CategoryID, doc.DiscoveryMethod, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}
	if err := d.bumpCategoryCount(ctx, doc.CategoryID, 1); err != nil {
		return nil, err
	}
	return doc, nil
}

// bumpCategoryCount is a no-op on the embedded backend, where sql/014's
// triggers maintain file_categories.doc_count automatically. On Postgres,
// where those triggers are stripped by translateDDL, it applies the same
// adjustment explicitly (spec 4.B's named behavioural difference).
func (d *DB) bumpCategoryCount(ctx context.Context, categoryID string, delta int64) error {
	if _, ok := d.backend.(*PostgresBackend); !ok {
		return nil
	}
	_, err := d.backend.Exec(ctx, `UPDATE file_categories SET doc_count = doc_count + ? WHERE id = ?`, delta, categoryID)
	if err != nil {
		return fmt.Errorf("adjust category count: %w", err)
	}
	return nil
}

// findDocumentByURL returns the document at (sourceID, url) only if it has
// at least one version; a versionless row is treated as not found.
func (d *DB) findDocumentByURL(ctx context.Context, sourceID, url string) (*Document, error) {
	row := d.backend.QueryRow(ctx, `
		SELECT d.id FROM documents d
		WHERE d.source_id = ? AND d.source_url = ?
		  AND EXISTS (SELECT 1 FROM document_versions v WHERE v.document_id = d.id)
		LIMIT 1`, sourceID, url)

	var id string
	if err := row.Scan(&id); err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup document by url: %w", err)
	}
	return d.GetDocument(ctx, id)
}

func (d *DB) GetDocument(ctx context.Context, id string) (*Document, error) {
	docs, err := d.ListDocuments(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	return &docs[0], nil
}

// ListDocuments loads the requested documents and all of their versions in
// two queries total, then attaches versions in memory (spec 4.B, 9: avoid
// one version query per document).
func (d *DB) ListDocuments(ctx context.Context, ids []string) ([]Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := d.backend.Query(ctx, fmt.Sprintf(`
		SELECT id, source_id, title, source_url, status, metadata, category_id, discovery_method, created_at, updated_at
		FROM documents WHERE id IN (%s)`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}

	byID := map[string]*Document{}
	var order []string
	for rows.Next() {
		var doc Document
		var metaJSON string
		if err := rows.Scan(&doc.ID, &doc.SourceID, &doc.Title, &doc.SourceURL, &doc.Status, &metaJSON, &doc.CategoryID, &doc.DiscoveryMethod, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan document: %w", err)
		}
		meta, err := unmarshalMetadata(metaJSON)
		if err != nil {
			rows.Close()
			return nil, err
		}
		doc.Metadata = meta
		byID[doc.ID] = &doc
		order = append(order, doc.ID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(order) == 0 {
		return nil, nil
	}

	vrows, err := d.backend.Query(ctx, fmt.Sprintf(`
		SELECT id, document_id, content_hash, content_hash_blake3, file_path, file_size, mime_type, acquired_at, source_url, original_filename, server_date, page_count, dedup_index
		FROM document_versions WHERE document_id IN (%s) ORDER BY document_id, id`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("query document versions: %w", err)
	}
	defer vrows.Close()

	for vrows.Next() {
		var v DocumentVersion
		if err := vrows.Scan(&v.ID, &v.DocumentID, &v.ContentHash, &v.ContentHashBLAKE3, &v.FilePath, &v.FileSize, &v.MimeType, &v.AcquiredAt, &v.SourceURL, &v.OriginalFilename, &v.ServerDate, &v.PageCount, &v.DedupIndex); err != nil {
			return nil, fmt.Errorf("scan document version: %w", err)
		}
		if doc, ok := byID[v.DocumentID]; ok {
			doc.Versions = append(doc.Versions, v)
		}
	}
	if err := vrows.Err(); err != nil {
		return nil, err
	}

	out := make([]Document, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out, nil
}

// Browse lists documents matching f in ascending document-id order,
// paging by the opaque document-id cursor.
func (d *DB) Browse(ctx context.Context, f BrowseFilter) ([]Document, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	var clauses []string
	var args []any
	if f.SourceID != "" {
		clauses = append(clauses, "source_id = ?")
		args = append(args, f.SourceID)
	}
	if f.CategoryID != "" {
		clauses = append(clauses, "category_id = ?")
		args = append(args, f.CategoryID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, f.Status)
	}
	if f.Cursor != "" {
		clauses = append(clauses, "id > ?")
		args = append(args, f.Cursor)
	}

	query := "SELECT id FROM documents"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id LIMIT ?"
	args = append(args, limit)

	rows, err := d.backend.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query browse: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	return d.ListDocuments(ctx, ids)
}

func (d *DB) SetStatus(ctx context.Context, id string, status DocumentStatus) error {
	_, err := d.backend.Exec(ctx, `UPDATE documents SET status = ? WHERE id = ?`, status, id)
	return err
}

func (d *DB) SetMetadata(ctx context.Context, id string, m DocMetadata) error {
	metaJSON, err := marshalMetadata(m)
	if err != nil {
		return err
	}
	_, err = d.backend.Exec(ctx, `UPDATE documents SET metadata = ? WHERE id = ?`, metaJSON, id)
	return err
}

// RecategorizeFromVersion updates a document's category_id from a newly
// acquired version's MIME type (spec 4.B: category is derived from the
// current version's MIME type, not fixed at creation).
func (d *DB) RecategorizeFromVersion(ctx context.Context, id string, mimeType string) error {
	cat := mimeCategoryID(mimeType)

	row := d.backend.QueryRow(ctx, `SELECT category_id FROM documents WHERE id = ?`, id)
	var oldCat string
	if err := row.Scan(&oldCat); err != nil {
		if noRows(err) {
			return ErrNotFound
		}
		return fmt.Errorf("read current category: %w", err)
	}
	if oldCat == cat {
		return nil
	}

	if _, err := d.backend.Exec(ctx, `UPDATE documents SET category_id = ? WHERE id = ?`, cat, id); err != nil {
		return fmt.Errorf("recategorize document: %w", err)
	}
	if err := d.bumpCategoryCount(ctx, oldCat, -1); err != nil {
		return err
	}
	return d.bumpCategoryCount(ctx, cat, 1)
}

func mimeCategoryID(mimeType string) string {
	return string(mime.TypeCategory(mimeType))
}

func marshalMetadata(m DocMetadata) (string, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	return string(b), nil
}

func unmarshalMetadata(s string) (DocMetadata, error) {
	var m DocMetadata
	if s == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return m, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return m, nil
}
