package store

import (
	"context"
	"fmt"
)

// AddSource inserts a new crawl origin. A source is created by operator
// action and never destroyed while any document references it (spec 3), so
// there is no corresponding delete.
func (d *DB) AddSource(ctx context.Context, s *Source) error {
	if s.ID == "" {
		id, err := GenID()
		if err != nil {
			return fmt.Errorf("generate source id: %w", err)
		}
		s.ID = id
	}
	_, err := d.backend.Exec(ctx, `
		INSERT INTO sources (id, source_type, base_url, metadata, created_at, last_scraped)
		VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, s.SourceType, s.BaseURL, s.Metadata, s.CreatedAt, s.LastScraped)
	if err != nil {
		return fmt.Errorf("insert source: %w", err)
	}
	return nil
}

func (d *DB) GetSource(ctx context.Context, id string) (*Source, error) {
	row := d.backend.QueryRow(ctx, `
		SELECT id, source_type, base_url, metadata, created_at, last_scraped
		FROM sources WHERE id = ?`, id)

	var s Source
	if err := row.Scan(&s.ID, &s.SourceType, &s.BaseURL, &s.Metadata, &s.CreatedAt, &s.LastScraped); err != nil {
		if noRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan source: %w", err)
	}
	return &s, nil
}

func (d *DB) ListSources(ctx context.Context) ([]Source, error) {
	rows, err := d.backend.Query(ctx, `
		SELECT id, source_type, base_url, metadata, created_at, last_scraped
		FROM sources ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	var out []Source
	for rows.Next() {
		var s Source
		if err := rows.Scan(&s.ID, &s.SourceType, &s.BaseURL, &s.Metadata, &s.CreatedAt, &s.LastScraped); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (d *DB) TouchLastScraped(ctx context.Context, id string, at int64) error {
	_, err := d.backend.Exec(ctx, `UPDATE sources SET last_scraped = ? WHERE id = ?`, at, id)
	return err
}
