package vacuum

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/foiacorpus/corpus/internal/store"
)

func setupStoreWithVersion(t *testing.T, casRoot, relPath string) *store.DB {
	t.Helper()
	ctx := t.Context()

	backend, err := store.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	s := store.New(backend)

	src := &store.Source{SourceType: "agency", BaseURL: "https://example.gov", CreatedAt: 1}
	require.NoError(t, s.AddSource(ctx, src))

	doc, err := s.UpsertDocument(ctx, &store.Document{SourceID: src.ID, SourceURL: "https://example.gov/live"})
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(casRoot, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(casRoot, relPath), []byte("live content"), 0o644))

	_, err = s.AddVersion(ctx, &store.DocumentVersion{DocumentID: doc.ID, FilePath: relPath, FileSize: 12, MimeType: "text/plain"})
	require.NoError(t, err)

	return s
}

func TestRunDryRunReportsOrphansWithoutDeleting(t *testing.T) {
	casRoot := t.TempDir()
	s := setupStoreWithVersion(t, casRoot, "ab/live.bin")

	orphan := filepath.Join(casRoot, "cd", "orphan.bin")
	require.NoError(t, os.MkdirAll(filepath.Dir(orphan), 0o755))
	require.NoError(t, os.WriteFile(orphan, []byte("garbage"), 0o644))

	var buf bytes.Buffer
	result, err := Run(t.Context(), &buf, s, casRoot, Options{DryRun: true})
	require.NoError(t, err)

	if result.Count != 1 {
		t.Fatalf("Count = %d, want 1", result.Count)
	}
	if _, err := os.Stat(orphan); err != nil {
		t.Errorf("dry run removed orphan: %v", err)
	}
	if _, err := os.Stat(filepath.Join(casRoot, "ab/live.bin")); err != nil {
		t.Errorf("dry run touched live blob: %v", err)
	}
}

func TestRunDeletesOrphansAndKeepsLive(t *testing.T) {
	casRoot := t.TempDir()
	s := setupStoreWithVersion(t, casRoot, "ab/live.bin")

	orphan := filepath.Join(casRoot, "cd", "orphan.bin")
	require.NoError(t, os.MkdirAll(filepath.Dir(orphan), 0o755))
	require.NoError(t, os.WriteFile(orphan, []byte("garbage"), 0o644))

	var buf bytes.Buffer
	result, err := Run(t.Context(), &buf, s, casRoot, Options{})
	require.NoError(t, err)

	if result.Count != 1 {
		t.Fatalf("Count = %d, want 1", result.Count)
	}
	if _, err := os.Stat(orphan); !os.IsNotExist(err) {
		t.Errorf("expected orphan removed, stat err = %v", err)
	}
	if _, err := os.Stat(filepath.Join(casRoot, "ab/live.bin")); err != nil {
		t.Errorf("live blob was removed: %v", err)
	}
}

func TestRunNoOrphansReportsZero(t *testing.T) {
	casRoot := t.TempDir()
	s := setupStoreWithVersion(t, casRoot, "ab/live.bin")

	var buf bytes.Buffer
	result, err := Run(t.Context(), &buf, s, casRoot, Options{})
	require.NoError(t, err)

	if result.Count != 0 {
		t.Fatalf("Count = %d, want 0", result.Count)
	}
	if _, err := os.Stat(filepath.Join(casRoot, "ab/live.bin")); err != nil {
		t.Errorf("live blob was removed: %v", err)
	}
}

func TestRunMissingCASRootReportsZero(t *testing.T) {
	casRoot := filepath.Join(t.TempDir(), "does-not-exist")
	backend, err := store.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	s := store.New(backend)

	var buf bytes.Buffer
	result, err := Run(t.Context(), &buf, s, casRoot, Options{})
	require.NoError(t, err)
	if result.Count != 0 {
		t.Fatalf("Count = %d, want 0", result.Count)
	}
}
