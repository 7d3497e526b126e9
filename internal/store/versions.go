package store

import (
	"context"
	"fmt"
)

// AddVersion inserts an immutable version row and returns its id. Callers
// are expected to have already consulted FindDedup via the CAS writer's
// exists callback (spec 4.A); AddVersion itself does not dedup.
func (d *DB) AddVersion(ctx context.Context, v *DocumentVersion) (int64, error) {
	// RETURNING works identically on modernc.org/sqlite (3.35+) and
	// Postgres, so auto-increment ids are read back without a
	// backend-specific LastInsertID path (spec 4.I: the contract exposes
	// only Returning<i64> on the server backend; using RETURNING
	// everywhere keeps one code path for both).
	row := d.backend.QueryRow(ctx, `
		INSERT INTO document_versions (document_id, content_hash, content_hash_blake3, file_path, file_size, mime_type, acquired_at, source_url, original_filename, server_date, page_count, dedup_index)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		v.DocumentID, v.ContentHash, v.ContentHashBLAKE3, v.FilePath, v.FileSize, v.MimeType,
		v.AcquiredAt, v.SourceURL, v.OriginalFilename, v.ServerDate, v.PageCount, v.DedupIndex)

	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("insert document version: %w", err)
	}
	v.ID = id
	return id, nil
}

// FindDedup looks up an existing version by the (sha256, blake3, size) dedup
// key (spec 4.A's exists callback), returning its file_path.
func (d *DB) FindDedup(ctx context.Context, sha256, blake3 string, size int64) (string, bool, error) {
	row := d.backend.QueryRow(ctx, `
		SELECT file_path FROM document_versions
		WHERE content_hash = ? AND content_hash_blake3 = ? AND file_size = ?
		LIMIT 1`, sha256, blake3, size)

	var path string
	if err := row.Scan(&path); err != nil {
		if noRows(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("lookup dedup: %w", err)
	}
	return path, true, nil
}

func (d *DB) ListVersions(ctx context.Context, documentID string) ([]DocumentVersion, error) {
	rows, err := d.backend.Query(ctx, `
		SELECT id, document_id, content_hash, content_hash_blake3, file_path, file_size, mime_type, acquired_at, source_url, original_filename, server_date, page_count, dedup_index
		FROM document_versions WHERE document_id = ? ORDER BY id`, documentID)
	if err != nil {
		return nil, fmt.Errorf("query versions: %w", err)
	}
	defer rows.Close()

	var out []DocumentVersion
	for rows.Next() {
		var v DocumentVersion
		if err := rows.Scan(&v.ID, &v.DocumentID, &v.ContentHash, &v.ContentHashBLAKE3, &v.FilePath, &v.FileSize, &v.MimeType, &v.AcquiredAt, &v.SourceURL, &v.OriginalFilename, &v.ServerDate, &v.PageCount, &v.DedupIndex); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (d *DB) SetPageCount(ctx context.Context, versionID int64, count int) error {
	_, err := d.backend.Exec(ctx, `UPDATE document_versions SET page_count = ? WHERE id = ?`, count, versionID)
	return err
}

// AllFilePaths returns every file_path referenced by any version, the
// live set the `vacuum` command diffs against the CAS root's contents to
// find orphaned blobs.
func (d *DB) AllFilePaths(ctx context.Context) (map[string]bool, error) {
	rows, err := d.backend.Query(ctx, `SELECT DISTINCT file_path FROM document_versions`)
	if err != nil {
		return nil, fmt.Errorf("query file paths: %w", err)
	}
	defer rows.Close()

	out := map[string]bool{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan file path: %w", err)
		}
		out[p] = true
	}
	return out, rows.Err()
}
