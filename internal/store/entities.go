package store

import (
	"context"
	"database/sql"
	"fmt"
)

// ReplaceEntities clears and reinserts a document's entity rows within one
// transaction (spec 4.G: the entities stage is idempotent by full
// replacement, not incremental merge).
func (d *DB) ReplaceEntities(ctx context.Context, documentID string, entities []DocumentEntity) error {
	return d.backend.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, rebindForTx(d, `DELETE FROM document_entities WHERE document_id = ?`), documentID); err != nil {
			return fmt.Errorf("clear entities: %w", err)
		}
		for _, e := range entities {
			_, err := tx.ExecContext(ctx, rebindForTx(d, `
				INSERT INTO document_entities (document_id, entity_type, text, normalized, latitude, longitude, source)
				VALUES (?, ?, ?, ?, ?, ?, ?)`),
				documentID, e.EntityType, e.Text, e.Normalized, e.Latitude, e.Longitude, e.Source)
			if err != nil {
				return fmt.Errorf("insert entity: %w", err)
			}
		}
		return nil
	})
}

func (d *DB) ListEntities(ctx context.Context, documentID string) ([]DocumentEntity, error) {
	rows, err := d.backend.Query(ctx, `
		SELECT id, document_id, entity_type, text, normalized, latitude, longitude, source
		FROM document_entities WHERE document_id = ? ORDER BY id`, documentID)
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}
	return scanEntityRows(rows)
}

// scanEntityRows is shared by ListEntities and the geo queries below.
func scanEntityRows(rows *sql.Rows) ([]DocumentEntity, error) {
	defer rows.Close()
	var out []DocumentEntity
	for rows.Next() {
		var e DocumentEntity
		if err := rows.Scan(&e.ID, &e.DocumentID, &e.EntityType, &e.Text, &e.Normalized, &e.Latitude, &e.Longitude, &e.Source); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// earthRadiusKM is the mean Earth radius used by the haversine distance
// calculation below.
const earthRadiusKM = 6371.0

// EntitiesWithinRadius returns entities whose recorded coordinates fall
// within radiusKM of (lat, lon), via the haversine formula (spec 4.I's
// one backend-differentiated core operation). The embedded backend has no
// trigonometric distance function wired in here, so it reports
// ErrUnsupportedOnBackend rather than silently returning zero rows.
func (d *DB) EntitiesWithinRadius(ctx context.Context, lat, lon, radiusKM float64) ([]DocumentEntity, error) {
	if !d.backend.SupportsGeospatial() {
		return nil, fmt.Errorf("%w: EntitiesWithinRadius", ErrUnsupportedOnBackend)
	}
	rows, err := d.backend.Query(ctx, `
		SELECT id, document_id, entity_type, text, normalized, latitude, longitude, source
		FROM document_entities
		WHERE latitude IS NOT NULL AND longitude IS NOT NULL
		  AND ? * acos(
		        LEAST(1.0, GREATEST(-1.0,
		          cos(radians(?)) * cos(radians(latitude)) * cos(radians(longitude) - radians(?))
		          + sin(radians(?)) * sin(radians(latitude))
		        ))
		      ) <= ?
		ORDER BY id`,
		earthRadiusKM, lat, lon, lat, radiusKM)
	if err != nil {
		return nil, fmt.Errorf("query entities within radius: %w", err)
	}
	return scanEntityRows(rows)
}

// EntitiesInBoundingBox returns entities whose coordinates fall within the
// given lat/lon rectangle (spec 4.I).
func (d *DB) EntitiesInBoundingBox(ctx context.Context, minLat, minLon, maxLat, maxLon float64) ([]DocumentEntity, error) {
	if !d.backend.SupportsGeospatial() {
		return nil, fmt.Errorf("%w: EntitiesInBoundingBox", ErrUnsupportedOnBackend)
	}
	rows, err := d.backend.Query(ctx, `
		SELECT id, document_id, entity_type, text, normalized, latitude, longitude, source
		FROM document_entities
		WHERE latitude BETWEEN ? AND ? AND longitude BETWEEN ? AND ?
		ORDER BY id`, minLat, maxLat, minLon, maxLon)
	if err != nil {
		return nil, fmt.Errorf("query entities in bounding box: %w", err)
	}
	return scanEntityRows(rows)
}
