// schema.go defines the database schema and provides schema execution helpers.
//
// Schema files are embedded from the sql/ directory and executed in alphabetical
// order (hence the numeric prefixes like 001_, 002_). This approach:
//
//   - Makes each table's schema self-contained and reviewable
//   - Produces cleaner git diffs when schema changes
//   - Ensures deterministic execution order via numbered prefixes
//
// The same embedded files run against both backends: every statement is
// written in SQLite-compatible DDL and PostgresBackend rewrites the handful
// of dialect differences (AUTOINCREMENT, INTEGER PRIMARY KEY) before exec;
// see postgres_backend.go's translateDDL.
package store

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
)

//go:embed sql/*.sql
var schemas embed.FS

var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a unique-constraint collision on an
	// operation that treats the collision as a caller error rather than
	// a no-op (most add-style operations prefer idempotent no-ops instead;
	// see Frontier.AddURL).
	ErrAlreadyExists = errors.New("already exists")
	// ErrContentTooLarge is returned when stored content exceeds the configured limit.
	ErrContentTooLarge = errors.New("content too large")
	// ErrUnsupportedOnBackend marks an operation only one backend implements
	// (e.g. geospatial queries on the embedded backend).
	ErrUnsupportedOnBackend = errors.New("unsupported on this backend")
)

// ExecEmbedded executes all .sql files from an embedded filesystem in
// alphabetical order. Each file should use IF NOT EXISTS clauses for
// idempotency, since it runs on every startup.
func ExecEmbedded(exec func(string) error, fsys embed.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("read schema directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := dir + "/" + entry.Name()
		data, err := fsys.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if err := exec(string(data)); err != nil {
			return fmt.Errorf("exec %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// execSchema executes the embedded core schema files against a *sql.DB.
func execSchema(db *sql.DB) error {
	return ExecEmbedded(func(stmt string) error {
		_, err := db.Exec(stmt)
		return err
	}, schemas, "sql")
}

// CurrentFormatVersion is the schema version this build expects. It is
// written into storage_meta on first init and checked on every open; see
// checkFormatVersion in sqlite_backend.go / postgres_backend.go.
const CurrentFormatVersion = 1
