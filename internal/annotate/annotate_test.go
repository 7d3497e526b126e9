package annotate

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foiacorpus/corpus/internal/llm"
	"github.com/foiacorpus/corpus/internal/ocr"
	"github.com/foiacorpus/corpus/internal/store"
)

func setupRunner(t *testing.T) (*Runner, *store.DB, string, func()) {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "foiacorpus-annotate-test-*")
	require.NoError(t, err)

	backend, err := store.OpenSQLite(filepath.Join(tmpDir, "test.db"))
	require.NoError(t, err)
	s := store.New(backend)

	casRoot := filepath.Join(tmpDir, "cas")
	require.NoError(t, os.MkdirAll(casRoot, 0o755))

	r := New(s, ocr.NoOp{}, llm.NoOp{}, Config{CASRoot: casRoot, MinCharsPerPage: 5})

	cleanup := func() {
		s.Close()
		os.RemoveAll(tmpDir)
	}
	return r, s, casRoot, cleanup
}

// seedDocument creates a source, document, and one text/plain version
// whose bytes live at casRoot/relPath, then reloads the document through
// ListDocuments so CurrentVersion() is populated the way Browse/ListDocuments
// callers see it.
func seedDocument(t *testing.T, s *store.DB, casRoot, relPath, content string) *store.Document {
	t.Helper()
	ctx := t.Context()

	src := &store.Source{SourceType: "agency", BaseURL: "https://example.gov", CreatedAt: 1}
	require.NoError(t, s.AddSource(ctx, src))

	doc, err := s.UpsertDocument(ctx, &store.Document{
		SourceID:  src.ID,
		SourceURL: "https://example.gov/" + relPath,
	})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(casRoot, relPath), []byte(content), 0o644))

	now := int64(1700000000)
	_, err = s.AddVersion(ctx, &store.DocumentVersion{
		DocumentID: doc.ID,
		FilePath:   relPath,
		FileSize:   int64(len(content)),
		MimeType:   "text/plain",
		AcquiredAt: &now,
	})
	require.NoError(t, err)

	docs, err := s.ListDocuments(ctx, []string{doc.ID})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	return &docs[0]
}

// seedDocumentWithMime is seedDocument generalized to an arbitrary MIME
// type and original filename, needed by the archive and filename-date tests.
func seedDocumentWithMime(t *testing.T, s *store.DB, casRoot, relPath string, content []byte, mimeType, originalFilename string) *store.Document {
	t.Helper()
	ctx := t.Context()

	src := &store.Source{SourceType: "agency", BaseURL: "https://example.gov", CreatedAt: 1}
	require.NoError(t, s.AddSource(ctx, src))

	doc, err := s.UpsertDocument(ctx, &store.Document{
		SourceID:  src.ID,
		SourceURL: "https://example.gov/" + relPath,
	})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(casRoot, relPath), content, 0o644))

	now := int64(1700000000)
	_, err = s.AddVersion(ctx, &store.DocumentVersion{
		DocumentID:       doc.ID,
		FilePath:         relPath,
		FileSize:         int64(len(content)),
		MimeType:         mimeType,
		AcquiredAt:       &now,
		OriginalFilename: originalFilename,
	})
	require.NoError(t, err)

	docs, err := s.ListDocuments(ctx, []string{doc.ID})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	return &docs[0]
}

func TestExtractCreatesOnePageForPlainText(t *testing.T) {
	r, s, casRoot, cleanup := setupRunner(t)
	defer cleanup()
	ctx := t.Context()

	doc := seedDocument(t, s, casRoot, "memo.txt", "a short memo about records retention")

	require.NoError(t, r.Extract(ctx, doc))

	v := doc.CurrentVersion()
	pages, err := s.GetPages(ctx, doc.ID, v.ID)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, store.OCRTextExtracted, pages[0].OCRStatus)
}

func TestExtractIsNoOpWhenPagesExist(t *testing.T) {
	r, s, casRoot, cleanup := setupRunner(t)
	defer cleanup()
	ctx := t.Context()

	doc := seedDocument(t, s, casRoot, "memo.txt", "a short memo")
	require.NoError(t, r.Extract(ctx, doc))
	require.NoError(t, r.Extract(ctx, doc))

	v := doc.CurrentVersion()
	pages, err := s.GetPages(ctx, doc.ID, v.ID)
	require.NoError(t, err)
	assert.Len(t, pages, 1)
}

func TestFinalizeSetsExtractedTextAndAdvancesStatus(t *testing.T) {
	r, s, casRoot, cleanup := setupRunner(t)
	defer cleanup()
	ctx := t.Context()

	doc := seedDocument(t, s, casRoot, "memo.txt", "a short memo about records retention")
	require.NoError(t, r.Extract(ctx, doc))

	docs, err := s.ListDocuments(ctx, []string{doc.ID})
	require.NoError(t, err)
	doc = &docs[0]

	require.NoError(t, r.Finalize(ctx, doc))

	updated, err := s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusOCRComplete, updated.Status)
	assert.Contains(t, updated.Metadata.ExtractedText, "records retention")
}

func TestSummarizeRecordsNoOpFailure(t *testing.T) {
	r, s, casRoot, cleanup := setupRunner(t)
	defer cleanup()
	ctx := t.Context()

	doc := seedDocument(t, s, casRoot, "memo.txt", "a short memo")
	require.NoError(t, s.SetStatus(ctx, doc.ID, store.StatusOCRComplete))
	doc.Status = store.StatusOCRComplete

	require.NoError(t, r.Summarize(ctx, doc))

	updated, err := s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	result, ok := updated.Metadata.Annotations["summarize"]
	require.True(t, ok)
	assert.NotEmpty(t, result.Error)
	assert.NotEqual(t, store.StatusIndexed, updated.Status)
}

func TestSummarizeSkipsWhenNotOCRComplete(t *testing.T) {
	r, s, casRoot, cleanup := setupRunner(t)
	defer cleanup()
	ctx := t.Context()

	doc := seedDocument(t, s, casRoot, "memo.txt", "a short memo")
	require.NoError(t, r.Summarize(ctx, doc))

	updated, err := s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, updated.Metadata.Annotations)
}

func TestEntitiesRecordsNoOpFailure(t *testing.T) {
	r, s, casRoot, cleanup := setupRunner(t)
	defer cleanup()
	ctx := t.Context()

	doc := seedDocument(t, s, casRoot, "memo.txt", "a short memo")
	require.NoError(t, r.Entities(ctx, doc))

	updated, err := s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	result, ok := updated.Metadata.Annotations["entities"]
	require.True(t, ok)
	assert.NotEmpty(t, result.Error)
}

func TestDateFallsBackToAcquiredAt(t *testing.T) {
	r, s, casRoot, cleanup := setupRunner(t)
	defer cleanup()
	ctx := t.Context()

	doc := seedDocument(t, s, casRoot, "memo.txt", "a short memo")
	require.NoError(t, r.Date(ctx, doc))

	updated, err := s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.Metadata.EstimatedDate)
	assert.Equal(t, "acquired_at", updated.Metadata.DateSource)
	assert.Equal(t, int64(1700000000), *updated.Metadata.EstimatedDate)
}

func TestDateIsNoOpWhenAlreadyEstimated(t *testing.T) {
	r, s, casRoot, cleanup := setupRunner(t)
	defer cleanup()
	ctx := t.Context()

	doc := seedDocument(t, s, casRoot, "memo.txt", "a short memo")
	require.NoError(t, r.Date(ctx, doc))

	docs, err := s.ListDocuments(ctx, []string{doc.ID})
	require.NoError(t, err)
	doc = &docs[0]
	first := *doc.Metadata.EstimatedDate

	require.NoError(t, r.Date(ctx, doc))

	updated, err := s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, first, *updated.Metadata.EstimatedDate)
}

func TestOCRNoOpBackendMarksPagesFailed(t *testing.T) {
	r, s, casRoot, cleanup := setupRunner(t)
	defer cleanup()
	ctx := t.Context()

	doc := seedDocument(t, s, casRoot, "scan.png", "not a real image")
	// Force the pager to treat this as an image needing OCR by inserting
	// a page directly, bypassing Extract's MIME dispatch.
	v := doc.CurrentVersion()
	pageID, err := s.SavePage(ctx, &store.DocumentPage{
		DocumentID: doc.ID,
		VersionID:  v.ID,
		PageNumber: 1,
		OCRStatus:  store.OCRPending,
	})
	require.NoError(t, err)

	require.NoError(t, r.OCR(ctx, doc))

	pages, err := s.GetPages(ctx, doc.ID, v.ID)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, store.OCRFailed, pages[0].OCRStatus)
	assert.Equal(t, pageID, pages[0].ID)
}

func TestExtractEnumeratesZipMembers(t *testing.T) {
	r, s, casRoot, cleanup := setupRunner(t)
	defer cleanup()
	ctx := t.Context()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("records/foia-response.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("responsive records"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	doc := seedDocumentWithMime(t, s, casRoot, "batch.zip", buf.Bytes(), "application/zip", "batch.zip")

	require.NoError(t, r.Extract(ctx, doc))

	v := doc.CurrentVersion()
	members, err := s.ListVirtualFiles(ctx, v.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "records/foia-response.txt", members[0].ArchivePath)
	assert.False(t, members[0].IsDirectory)
	assert.NotEmpty(t, members[0].ContentHash)

	pages, err := s.GetPages(ctx, doc.ID, v.ID)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, store.OCRTextExtracted, pages[0].OCRStatus)
	assert.Contains(t, pages[0].FinalText, "1 member file")

	done, err := s.AllPagesTerminal(ctx, doc.ID, v.ID)
	require.NoError(t, err)
	assert.True(t, done)
}

func TestExtractUnsupportedMimeStillAdvances(t *testing.T) {
	r, s, casRoot, cleanup := setupRunner(t)
	defer cleanup()
	ctx := t.Context()

	doc := seedDocumentWithMime(t, s, casRoot, "data.bin", []byte("opaque payload"), "application/octet-stream", "data.bin")

	require.NoError(t, r.Extract(ctx, doc))

	v := doc.CurrentVersion()
	pages, err := s.GetPages(ctx, doc.ID, v.ID)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, store.OCRTextExtracted, pages[0].OCRStatus)
}

func TestDatePrefersFilenameDateOverAcquiredAt(t *testing.T) {
	r, s, casRoot, cleanup := setupRunner(t)
	defer cleanup()
	ctx := t.Context()

	doc := seedDocumentWithMime(t, s, casRoot, "memo.txt", []byte("a short memo"), "text/plain", "foia-response-2019-03-14.txt")

	require.NoError(t, r.Date(ctx, doc))

	updated, err := s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.Metadata.EstimatedDate)
	assert.Equal(t, "filename", updated.Metadata.DateSource)
}
