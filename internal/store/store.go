// store.go wires the domain operations (sources, documents, frontier, ...)
// onto a Backend. Each concern lives in its own file (sources.go,
// documents.go, frontier.go, ...) so a reader can find one table's
// operations without scanning the whole package, mirroring how the schema
// itself is split into one file per table.
package store

import (
	"database/sql"
	"errors"
)

// DB implements Store against any Backend (SQLiteBackend or PostgresBackend).
// All business logic lives here; the backends only hide dialect differences.
type DB struct {
	backend Backend
}

var _ Store = (*DB)(nil)

// New wraps a Backend with the domain operations.
func New(b Backend) *DB {
	return &DB{backend: b}
}

// Backend exposes the underlying Backend for callers that need direct
// access (migrations, tests).
func (d *DB) Backend() Backend { return d.backend }

// Close releases the underlying connection.
func (d *DB) Close() error { return d.backend.Close() }

// BrowseFilter narrows Browse's result set. Zero values mean "no filter".
type BrowseFilter struct {
	SourceID   string
	CategoryID string
	Status     DocumentStatus
	Cursor     string // opaque, currently the last-seen document id
	Limit      int
}

// CorpusStats summarizes the whole corpus for the CLI's `stats` command.
type CorpusStats struct {
	Documents      int64
	Versions       int64
	PendingURLs    int64
	FetchedURLs    int64
	ExhaustedURLs  int64
	CategoryCounts map[string]int64
}

func int64OrNil(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func intOrNil(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// noRows is a small helper to keep ErrNotFound translation consistent
// across every single-row lookup in this package.
func noRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// rebindForTx rewrites a `?`-placeholder query for execution directly
// against a *sql.Tx (inside Backend.Transaction's fn, which bypasses
// Exec/Query/QueryRow's own rebinding). SQLite accepts `?` as-is.
func rebindForTx(d *DB, query string) string {
	if _, ok := d.backend.(*PostgresBackend); ok {
		return rebind(query)
	}
	return query
}
