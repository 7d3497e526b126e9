package log

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger(t *testing.T) {
	// Use temp directory for test database
	tmpDir := t.TempDir()
	origDBPath := dbPathFunc
	dbPathFunc = func() string {
		return filepath.Join(tmpDir, "log", "test.db")
	}
	defer func() { dbPathFunc = origDBPath }()

	t.Run("open and close", func(t *testing.T) {
		err := Open()
		require.NoError(t, err)
		defer Close()

		assert.FileExists(t, DBPath())
	})

	t.Run("log entry", func(t *testing.T) {
		err := Open()
		require.NoError(t, err)
		defer Close()

		SetCorpus("/test/corpus/.foiacorpus")

		Log(Entry{
			Source:        "fetch:complete",
			Action:        "fetch",
			SourceIDVal:   "src-1",
			URLVal:        "https://example.gov/doc.pdf",
			DocumentIDVal: "doc-1",
			StatusCode:    200,
			Success:       true,
		})

		db, err := sql.Open("sqlite", DBPath())
		require.NoError(t, err)
		defer db.Close()

		var count int
		err = db.QueryRow("SELECT COUNT(*) FROM log").Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		var source, action, url, documentID string
		var statusCode, success int
		err = db.QueryRow("SELECT source, action, url, document_id, status_code, success FROM log WHERE id = 1").
			Scan(&source, &action, &url, &documentID, &statusCode, &success)
		require.NoError(t, err)
		assert.Equal(t, "fetch:complete", source)
		assert.Equal(t, "fetch", action)
		assert.Equal(t, "https://example.gov/doc.pdf", url)
		assert.Equal(t, "doc-1", documentID)
		assert.Equal(t, 200, statusCode)
		assert.Equal(t, 1, success)
	})

	t.Run("log error entry", func(t *testing.T) {
		Close()

		err := Open()
		require.NoError(t, err)
		defer Close()

		SetCorpus("/test/corpus/.foiacorpus")

		Log(Entry{
			Source:  "fetch:complete",
			Action:  "fetch",
			URLVal:  "https://example.gov/missing.pdf",
			Success: false,
			Error:   "404 not found",
		})

		db, err := sql.Open("sqlite", DBPath())
		require.NoError(t, err)
		defer db.Close()

		var success int
		var errMsg string
		err = db.QueryRow("SELECT success, error FROM log ORDER BY id DESC LIMIT 1").
			Scan(&success, &errMsg)
		require.NoError(t, err)
		assert.Equal(t, 0, success)
		assert.Equal(t, "404 not found", errMsg)
	})

	t.Run("log with detail", func(t *testing.T) {
		Close()

		err := Open()
		require.NoError(t, err)
		defer Close()

		SetCorpus("/test/corpus/.foiacorpus")

		Log(Entry{
			Source:  "annotate:entities",
			Action:  "annotate",
			Success: true,
			Detail:  map[string]any{"stage": "entities", "count": 12},
		})

		db, err := sql.Open("sqlite", DBPath())
		require.NoError(t, err)
		defer db.Close()

		var detail string
		err = db.QueryRow("SELECT detail FROM log ORDER BY id DESC LIMIT 1").Scan(&detail)
		require.NoError(t, err)
		assert.Contains(t, detail, "entities")
		assert.Contains(t, detail, "12")
	})

	t.Run("log without logger is noop", func(t *testing.T) {
		Close()

		// Should not panic
		Log(Entry{
			Source:  "test:cmd",
			Action:  "test",
			Success: true,
		})
	})

	t.Run("open is idempotent", func(t *testing.T) {
		err := Open()
		require.NoError(t, err)

		err = Open() // second call should succeed
		require.NoError(t, err)

		Close()
	})
}

func TestHash(t *testing.T) {
	h1 := hash("/home/user/corpus/.foiacorpus")
	h2 := hash("/home/user/corpus/.foiacorpus")
	h3 := hash("/home/user/other/.foiacorpus")

	assert.Equal(t, h1, h2, "same input should produce same hash")
	assert.NotEqual(t, h1, h3, "different input should produce different hash")
	assert.Len(t, h1, 16, "BLAKE2b-64 should produce 16 hex chars")
}

func TestDBPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	expected := filepath.Join(home, ".foiacorpus", "log", "foiacorpus-log.db")

	origDBPath := dbPathFunc
	dbPathFunc = defaultDBPath
	defer func() { dbPathFunc = origDBPath }()

	assert.Equal(t, expected, DBPath())
}

func TestBuilder(t *testing.T) {
	tmpDir := t.TempDir()
	origDBPath := dbPathFunc
	dbPathFunc = func() string {
		return filepath.Join(tmpDir, "log", "test.db")
	}
	defer func() { dbPathFunc = origDBPath }()

	t.Run("fluent API success", func(t *testing.T) {
		Close()
		err := Open()
		require.NoError(t, err)
		defer Close()

		SetCorpus("/test/corpus/.foiacorpus")

		Event("fetch:claim", "claim").
			SourceID("src-1").
			URL("https://example.gov/doc.pdf").
			Write(nil) // success

		db, err := sql.Open("sqlite", DBPath())
		require.NoError(t, err)
		defer db.Close()

		var source, sourceID, action, url string
		var success int
		err = db.QueryRow("SELECT source, source_id, action, url, success FROM log ORDER BY id DESC LIMIT 1").
			Scan(&source, &sourceID, &action, &url, &success)
		require.NoError(t, err)
		assert.Equal(t, "fetch:claim", source)
		assert.Equal(t, "src-1", sourceID)
		assert.Equal(t, "claim", action)
		assert.Equal(t, "https://example.gov/doc.pdf", url)
		assert.Equal(t, 1, success)
	})

	t.Run("fluent API with error", func(t *testing.T) {
		Close()
		err := Open()
		require.NoError(t, err)
		defer Close()

		SetCorpus("/test/corpus/.foiacorpus")

		testErr := sql.ErrNoRows // use any error
		Event("fetch:complete", "fetch").
			URL("https://example.gov/missing.pdf").
			Write(testErr)

		db, err := sql.Open("sqlite", DBPath())
		require.NoError(t, err)
		defer db.Close()

		var success int
		var errMsg string
		err = db.QueryRow("SELECT success, error FROM log ORDER BY id DESC LIMIT 1").
			Scan(&success, &errMsg)
		require.NoError(t, err)
		assert.Equal(t, 0, success)
		assert.Equal(t, testErr.Error(), errMsg)
	})

	t.Run("fluent API with Detail", func(t *testing.T) {
		Close()
		err := Open()
		require.NoError(t, err)
		defer Close()

		SetCorpus("/test/corpus/.foiacorpus")

		Event("annotate:entities", "annotate").
			DocumentID("doc-1").
			Detail("stage", "entities").
			Detail("count", 12).
			Write(nil)

		db, err := sql.Open("sqlite", DBPath())
		require.NoError(t, err)
		defer db.Close()

		var detail string
		err = db.QueryRow("SELECT detail FROM log ORDER BY id DESC LIMIT 1").Scan(&detail)
		require.NoError(t, err)
		assert.Contains(t, detail, "entities")
		assert.Contains(t, detail, "12")
	})
}
