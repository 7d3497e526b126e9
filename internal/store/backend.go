package store

import (
	"context"
	"database/sql"
)

// Row mirrors the subset of *sql.Row / *sql.Rows the store package scans
// against, so scanDoc-style helpers work against either.
type Row interface {
	Scan(dest ...any) error
}

// Backend is the single data-access contract the store layer depends on,
// implementable against an embedded single-writer engine (SQLiteBackend) or
// a server-class multi-writer engine (PostgresBackend). Everything above
// this interface (documents.go, frontier.go, ...) is backend-agnostic;
// everything below it (sqlite_backend.go, postgres_backend.go) hides the
// divergences spec 4.I names: auto-increment strategy, upsert syntax, batch
// insert, and bulk import.
type Backend interface {
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) *sql.Row

	// Transaction runs fn within a database transaction, committing on nil
	// return and rolling back otherwise.
	Transaction(ctx context.Context, fn func(tx *sql.Tx) error) error

	// ClaimTransaction runs fn within a transaction suitable for an atomic
	// select-then-update claim. SQLite has no SELECT ... FOR UPDATE, so the
	// embedded backend serializes these through a process-local mutex; the
	// server backend has no equivalent need since Postgres's row-level lock
	// on the claim UPDATE, together with that UPDATE's status guard in
	// ClaimPending, prevents two claimers from taking the same row.
	ClaimTransaction(ctx context.Context, fn func(tx *sql.Tx) error) error

	// LastInsertID returns the id of the just-inserted row. On SQLite this
	// is sql.Result.LastInsertId(); on Postgres callers instead use a
	// RETURNING clause and this method is not used for that backend.
	LastInsertID(res sql.Result) (int64, error)

	// Upsert executes an insert-or-update on a unique index. cols are the
	// insert columns, conflictCols identify the unique index, updateCols
	// are the columns to overwrite on conflict (others are left alone).
	Upsert(ctx context.Context, table string, cols []string, vals []any, conflictCols, updateCols []string) (sql.Result, error)

	// BatchInsert inserts all rows, silently skipping rows that collide
	// with an existing unique index entry ("insert all, skip conflicts").
	BatchInsert(ctx context.Context, table string, cols []string, rows [][]any, conflictCols []string) (int64, error)

	// BulkImport streams rows into table using the backend's fastest bulk
	// path. The embedded backend falls back to BatchInsert; the server
	// backend uses pgx.CopyFrom.
	BulkImport(ctx context.Context, table string, cols []string, rows [][]any) (int64, error)

	// SupportsGeospatial reports whether the radius and bounding-box entity
	// queries (entities.go) are available.
	SupportsGeospatial() bool

	Close() error
}
