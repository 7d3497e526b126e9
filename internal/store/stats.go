package store

import (
	"context"
	"fmt"
)

// CategoryCounts returns the file_categories table's maintained counts,
// the O(1) aggregate spec 4.B's implementation note describes.
func (d *DB) CategoryCounts(ctx context.Context) (map[string]int64, error) {
	rows, err := d.backend.Query(ctx, `SELECT id, doc_count FROM file_categories`)
	if err != nil {
		return nil, fmt.Errorf("query category counts: %w", err)
	}
	defer rows.Close()

	out := map[string]int64{}
	for rows.Next() {
		var id string
		var count int64
		if err := rows.Scan(&id, &count); err != nil {
			return nil, fmt.Errorf("scan category count: %w", err)
		}
		out[id] = count
	}
	return out, rows.Err()
}

// Totals reports corpus-wide counters for the CLI's `stats` command.
func (d *DB) Totals(ctx context.Context) (CorpusStats, error) {
	var s CorpusStats

	row := d.backend.QueryRow(ctx, `SELECT COUNT(*) FROM documents`)
	if err := row.Scan(&s.Documents); err != nil {
		return s, fmt.Errorf("count documents: %w", err)
	}

	row = d.backend.QueryRow(ctx, `SELECT COUNT(*) FROM document_versions`)
	if err := row.Scan(&s.Versions); err != nil {
		return s, fmt.Errorf("count versions: %w", err)
	}

	row = d.backend.QueryRow(ctx, `SELECT COUNT(*) FROM crawl_urls WHERE status IN (?, ?)`, URLDiscovered, URLFailed)
	if err := row.Scan(&s.PendingURLs); err != nil {
		return s, fmt.Errorf("count pending urls: %w", err)
	}

	row = d.backend.QueryRow(ctx, `SELECT COUNT(*) FROM crawl_urls WHERE status = ?`, URLFetched)
	if err := row.Scan(&s.FetchedURLs); err != nil {
		return s, fmt.Errorf("count fetched urls: %w", err)
	}

	row = d.backend.QueryRow(ctx, `SELECT COUNT(*) FROM crawl_urls WHERE status = ?`, URLExhausted)
	if err := row.Scan(&s.ExhaustedURLs); err != nil {
		return s, fmt.Errorf("count exhausted urls: %w", err)
	}

	counts, err := d.CategoryCounts(ctx)
	if err != nil {
		return s, err
	}
	s.CategoryCounts = counts
	return s, nil
}
