// Package log provides centralised audit logging for corpus operations.
// Logs are stored in ~/.foiacorpus/log/foiacorpus-log.db and track crawl,
// fetch, and annotation events across corpora.
//
// # Fluent API
//
// Use the fluent builder API to construct and write log entries:
//
//	log.Event("fetch:claim", "claim").
//		SourceID(source.ID).
//		URL(u.URL).
//		Write(err)
//
//	log.Event("annotate:summarize", "annotate").
//		DocumentID(doc.ID).
//		Detail("stage", "summarize").
//		Detail("version", version).
//		Write(err)
//
// The source parameter follows the format "{component}:{operation}", e.g.
// "fetch:claim", "fetch:complete", "annotate:entities", "crawl:seed".
package log

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

var (
	global *Logger
	mu     sync.Mutex
)

// Entry represents a single log entry.
type Entry struct {
	Source string // e.g., "fetch:claim", "annotate:entities"
	Action string // verb: claim, fetch, annotate, sweep, etc.

	SourceIDVal  string // crawl source this operation targeted
	URLVal       string // input: URL fetched or claimed
	DocumentIDVal string // input/output: document affected

	StatusCode int   // output: HTTP status code, when applicable
	Bytes      int64 // output: bytes transferred or stored

	Start int64 // unix timestamp when Event() called
	End   int64 // unix timestamp when Write() called

	Success bool
	Error   string
	Detail  map[string]any
}

// Builder constructs a log entry using a fluent API.
// Create with [Event], chain methods to set fields, then call [Builder.Write]
// to write the entry.
type Builder struct {
	entry Entry
}

// Event creates a new log entry builder for an operation.
//
// Example:
//
//	log.Event("fetch:complete", "fetch").
//		SourceID(source.ID).
//		URL(u.URL).
//		Write(err)
func Event(source, action string) *Builder {
	return &Builder{
		entry: Entry{
			Source: source,
			Action: action,
			Start:  time.Now().Unix(),
		},
	}
}

// SourceID sets the crawl source this operation targeted.
func (b *Builder) SourceID(id string) *Builder {
	b.entry.SourceIDVal = id
	return b
}

// URL sets the URL this operation fetched or claimed.
func (b *Builder) URL(u string) *Builder {
	b.entry.URLVal = u
	return b
}

// DocumentID sets the document this operation affected.
func (b *Builder) DocumentID(id string) *Builder {
	b.entry.DocumentIDVal = id
	return b
}

// StatusCode sets the HTTP status code a fetch attempt received.
func (b *Builder) StatusCode(code int) *Builder {
	b.entry.StatusCode = code
	return b
}

// Bytes sets the number of bytes transferred or stored by this operation.
func (b *Builder) Bytes(n int64) *Builder {
	b.entry.Bytes = n
	return b
}

// Detail adds a key-value pair to the log entry's detail map.
//
// Use for operation-specific data that doesn't fit standard fields: stage
// names, retry counts, confidence scores, etc. Can be called multiple
// times to add multiple details.
func (b *Builder) Detail(key string, value any) *Builder {
	if b.entry.Detail == nil {
		b.entry.Detail = make(map[string]any)
	}
	b.entry.Detail[key] = value
	return b
}

// Write writes the log entry to the database, deriving success/failure
// from err.
func (b *Builder) Write(err error) {
	b.entry.End = time.Now().Unix()
	b.entry.Success = err == nil
	if err != nil {
		b.entry.Error = err.Error()
	}
	Log(b.entry)
}

// Open initialises the global logger. Safe to call multiple times.
// Errors are returned but callers may choose to ignore them (best-effort logging).
func Open() error {
	mu.Lock()
	defer mu.Unlock()

	if global != nil {
		return nil
	}

	p := dbPath()
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return err
	}

	db, err := sql.Open("sqlite", p)
	if err != nil {
		return err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return err
	}

	global = &Logger{db: db}
	return nil
}

// SetCorpus sets the corpus identifier for subsequent log entries.
// The dir should be the absolute path to the corpus's data directory.
func SetCorpus(dir string) {
	mu.Lock()
	defer mu.Unlock()
	if global != nil {
		global.corpus = hash(dir)
	}
}

// Log writes an entry. Safe to call if logger not initialised (no-op).
func Log(e Entry) {
	mu.Lock()
	l := global
	mu.Unlock()

	if l == nil {
		return
	}
	l.log(e)
}

// Close closes the global logger.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if global != nil {
		global.db.Close()
		global = nil
	}
}
