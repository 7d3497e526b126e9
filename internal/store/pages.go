package store

import (
	"context"
	"fmt"
)

func (d *DB) SavePage(ctx context.Context, p *DocumentPage) (int64, error) {
	status := p.OCRStatus
	if status == "" {
		status = OCRPending
	}
	row := d.backend.QueryRow(ctx, `
		INSERT INTO document_pages (document_id, version_id, page_number, pdf_text, ocr_text, final_text, ocr_status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		p.DocumentID, p.VersionID, p.PageNumber, p.PDFText, p.OCRText, p.FinalText, status)

	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("insert page: %w", err)
	}
	p.ID = id
	p.OCRStatus = status
	return id, nil
}

func (d *DB) GetPages(ctx context.Context, documentID string, versionID int64) ([]DocumentPage, error) {
	rows, err := d.backend.Query(ctx, `
		SELECT id, document_id, version_id, page_number, pdf_text, ocr_text, final_text, ocr_status
		FROM document_pages WHERE document_id = ? AND version_id = ? ORDER BY page_number`,
		documentID, versionID)
	if err != nil {
		return nil, fmt.Errorf("query pages: %w", err)
	}
	defer rows.Close()

	var out []DocumentPage
	for rows.Next() {
		var p DocumentPage
		if err := rows.Scan(&p.ID, &p.DocumentID, &p.VersionID, &p.PageNumber, &p.PDFText, &p.OCRText, &p.FinalText, &p.OCRStatus); err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// PagesNeedingOCR returns pages whose pdf_text fell short of the
// configured chars-per-page threshold and have not yet reached a terminal
// OCR status (spec 4.F: pages with sufficient embedded text skip OCR
// entirely and are marked text_extracted, never queued here).
func (d *DB) PagesNeedingOCR(ctx context.Context, documentID string, versionID int64) ([]DocumentPage, error) {
	rows, err := d.backend.Query(ctx, `
		SELECT id, document_id, version_id, page_number, pdf_text, ocr_text, final_text, ocr_status
		FROM document_pages
		WHERE document_id = ? AND version_id = ? AND ocr_status = ?
		ORDER BY page_number`,
		documentID, versionID, OCRPending)
	if err != nil {
		return nil, fmt.Errorf("query pages needing ocr: %w", err)
	}
	defer rows.Close()

	var out []DocumentPage
	for rows.Next() {
		var p DocumentPage
		if err := rows.Scan(&p.ID, &p.DocumentID, &p.VersionID, &p.PageNumber, &p.PDFText, &p.OCRText, &p.FinalText, &p.OCRStatus); err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (d *DB) SetPageStatus(ctx context.Context, pageID int64, status OCRStatus, ocrText, finalText string) error {
	_, err := d.backend.Exec(ctx, `
		UPDATE document_pages SET ocr_status = ?, ocr_text = ?, final_text = ? WHERE id = ?`,
		status, ocrText, finalText, pageID)
	return err
}

// AllPagesTerminal implements the finalize predicate (spec 4.G: "finalize
// runs once every page's ocr_status is terminal and the page count is
// greater than zero").
func (d *DB) AllPagesTerminal(ctx context.Context, documentID string, versionID int64) (bool, error) {
	row := d.backend.QueryRow(ctx, `
		SELECT COUNT(*),
		       SUM(CASE WHEN ocr_status IN (?, ?, ?, ?) THEN 1 ELSE 0 END)
		FROM document_pages WHERE document_id = ? AND version_id = ?`,
		OCRTextExtracted, OCRComplete, OCRFailed, OCRSkipped, documentID, versionID)

	var total int
	var terminal *int
	if err := row.Scan(&total, &terminal); err != nil {
		return false, fmt.Errorf("count page terminal status: %w", err)
	}
	if total == 0 || terminal == nil {
		return false, nil
	}
	return *terminal == total, nil
}

func (d *DB) StoreOCRResult(ctx context.Context, r *PageOcrResult) error {
	_, err := d.backend.Upsert(ctx, "page_ocr_results",
		[]string{"page_id", "backend", "text", "confidence", "duration_ms", "error", "created_at"},
		[]any{r.PageID, r.Backend, r.Text, r.Confidence, r.DurationMS, r.Error, r.CreatedAt},
		[]string{"page_id", "backend"},
		[]string{"text", "confidence", "duration_ms", "error", "created_at"},
	)
	if err != nil {
		return fmt.Errorf("upsert ocr result: %w", err)
	}
	return nil
}

// BestOCRResult implements the tie-break spec 4.I's Open Question resolves:
// highest confidence first, then most recent attempt.
func (d *DB) BestOCRResult(ctx context.Context, pageID int64) (*PageOcrResult, error) {
	row := d.backend.QueryRow(ctx, `
		SELECT id, page_id, backend, text, confidence, duration_ms, error, created_at
		FROM page_ocr_results WHERE page_id = ?
		ORDER BY confidence DESC, created_at DESC
		LIMIT 1`, pageID)

	var r PageOcrResult
	if err := row.Scan(&r.ID, &r.PageID, &r.Backend, &r.Text, &r.Confidence, &r.DurationMS, &r.Error, &r.CreatedAt); err != nil {
		if noRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan ocr result: %w", err)
	}
	return &r, nil
}
