package store

import (
	"context"
	"database/sql"
	"fmt"
)

// GetConfigHash returns the hash of the crawl config last applied to
// sourceID, or ok=false if the source has never been configured.
func (d *DB) GetConfigHash(ctx context.Context, sourceID string) (string, bool, error) {
	row := d.backend.QueryRow(ctx, `SELECT config_hash FROM crawl_config WHERE source_id = ?`, sourceID)

	var hash string
	if err := row.Scan(&hash); err != nil {
		if noRows(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read config hash: %w", err)
	}
	return hash, true, nil
}

// SetConfigHash upserts the active config hash for sourceID and appends a
// snapshot to its configuration_history ring (spec 4.H), pruning back to
// HistoryRingSize entries in the same transaction.
func (d *DB) SetConfigHash(ctx context.Context, sourceID, hash string, snapshot string, at int64) error {
	return d.backend.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, rebindForTx(d, `
			INSERT INTO crawl_config (source_id, config_hash, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(source_id) DO UPDATE SET config_hash = excluded.config_hash, updated_at = excluded.updated_at`),
			sourceID, hash, at); err != nil {
			return fmt.Errorf("upsert config hash: %w", err)
		}

		if _, err := tx.ExecContext(ctx, rebindForTx(d, `
			INSERT INTO configuration_history (source_id, config_hash, snapshot, created_at)
			VALUES (?, ?, ?, ?)`), sourceID, hash, snapshot, at); err != nil {
			return fmt.Errorf("insert configuration history: %w", err)
		}

		if _, err := tx.ExecContext(ctx, rebindForTx(d, `
			DELETE FROM configuration_history
			WHERE source_id = ? AND id NOT IN (
				SELECT id FROM configuration_history WHERE source_id = ?
				ORDER BY created_at DESC LIMIT ?
			)`), sourceID, sourceID, HistoryRingSize); err != nil {
			return fmt.Errorf("prune configuration history: %w", err)
		}
		return nil
	})
}
