package store

import (
	"context"
	"fmt"
)

// SaveVirtualFile inserts one archive-member row for a container document
// version. (container_version_id, archive_path) is unique, so a re-walk of
// the same version is a no-op rather than a duplicate error (spec.md §3's
// VirtualFile is keyed that way precisely so the extract stage can retry
// idempotently). The no-op case returns id 0 and leaves vf.ID unchanged.
func (d *DB) SaveVirtualFile(ctx context.Context, vf *VirtualFile) (int64, error) {
	row := d.backend.QueryRow(ctx, `
		INSERT INTO virtual_files (container_version_id, archive_path, is_directory, mime_type, compressed_size, file_size, content_hash, extracted_document_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(container_version_id, archive_path) DO NOTHING
		RETURNING id`,
		vf.ContainerVersionID, vf.ArchivePath, boolToInt(vf.IsDirectory), vf.MimeType, vf.CompressedSize, vf.FileSize, vf.ContentHash, nullableString(vf.ExtractedDocumentID))

	var id int64
	if err := row.Scan(&id); err != nil {
		if noRows(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("insert virtual file: %w", err)
	}
	vf.ID = id
	return id, nil
}

// ListVirtualFiles returns containerVersionID's recorded archive members,
// ordered by archive path.
func (d *DB) ListVirtualFiles(ctx context.Context, containerVersionID int64) ([]VirtualFile, error) {
	rows, err := d.backend.Query(ctx, `
		SELECT id, container_version_id, archive_path, is_directory, mime_type, compressed_size, file_size, content_hash, extracted_document_id
		FROM virtual_files WHERE container_version_id = ? ORDER BY archive_path`, containerVersionID)
	if err != nil {
		return nil, fmt.Errorf("query virtual files: %w", err)
	}
	defer rows.Close()

	var out []VirtualFile
	for rows.Next() {
		var vf VirtualFile
		var isDirectory int64
		var extractedDocumentID *string
		if err := rows.Scan(&vf.ID, &vf.ContainerVersionID, &vf.ArchivePath, &isDirectory, &vf.MimeType, &vf.CompressedSize, &vf.FileSize, &vf.ContentHash, &extractedDocumentID); err != nil {
			return nil, fmt.Errorf("scan virtual file: %w", err)
		}
		vf.IsDirectory = isDirectory != 0
		if extractedDocumentID != nil {
			vf.ExtractedDocumentID = *extractedDocumentID
		}
		out = append(out, vf)
	}
	return out, rows.Err()
}

// nullableString converts an empty string to a nil driver value so the
// column is stored as SQL NULL rather than an empty-string foreign key.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
