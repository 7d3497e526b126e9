package fetch

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foiacorpus/corpus/internal/hash"
	"github.com/foiacorpus/corpus/internal/ratelimit"
	"github.com/foiacorpus/corpus/internal/store"
	"github.com/foiacorpus/corpus/internal/transport"
)

// setupFetcher wires a real SQLite-backed store and CAS writer into a
// Fetcher, the same combination the crawl command assembles at runtime.
func setupFetcher(t *testing.T) (*Fetcher, *store.DB, func()) {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "foiacorpus-fetch-test-*")
	require.NoError(t, err)

	backend, err := store.OpenSQLite(filepath.Join(tmpDir, "test.db"))
	require.NoError(t, err)
	s := store.New(backend)

	writer, err := hash.NewWriter(filepath.Join(tmpDir, "cas"), hash.ModeCopy)
	require.NoError(t, err)

	f := &Fetcher{
		Governor: ratelimit.New(ratelimit.Config{FloorMS: 1, CeilingMS: 1000}),
		Writer:   writer,
		Store:    s,
		Config:   Config{Timeout: 5 * time.Second, MaxRetries: 3, BaseRetryDelayMS: 100},
	}

	cleanup := func() {
		s.Close()
		os.RemoveAll(tmpDir)
	}
	return f, s, cleanup
}

func seedSourceAndURL(t *testing.T, s *store.DB, rawURL string) (*store.Source, *store.CrawlURL) {
	t.Helper()
	src := &store.Source{SourceType: "agency", BaseURL: "https://example.gov", CreatedAt: 1}
	require.NoError(t, s.AddSource(t.Context(), src))

	u := &store.CrawlURL{SourceID: src.ID, URL: rawURL, DiscoveryMethod: "seed", DiscoveredAt: 1}
	ok, err := s.AddURL(t.Context(), u)
	require.NoError(t, err)
	require.True(t, ok)

	claimed, err := s.ClaimPending(t.Context(), src.ID)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	return src, claimed
}

func TestFetcherRunNewDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("%PDF-1.4 fake content"))
	}))
	defer srv.Close()

	f, s, cleanup := setupFetcher(t)
	defer cleanup()
	f.Transport = transport.NewDefault(5 * time.Second)

	source, claimed := seedSourceAndURL(t, s, srv.URL+"/record.pdf")

	outcome, err := f.Run(t.Context(), source, claimed)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNew, outcome)

	docs, err := s.Browse(t.Context(), store.BrowseFilter{SourceID: source.ID})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	doc := docs[0]
	assert.Equal(t, store.StatusDownloaded, doc.Status)

	versions, err := s.ListVersions(t.Context(), doc.ID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, "application/pdf", versions[0].MimeType)
}

func TestFetcherRunNotModified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotModified)
	}))
	defer srv.Close()

	f, s, cleanup := setupFetcher(t)
	defer cleanup()
	f.Transport = transport.NewDefault(5 * time.Second)

	source, claimed := seedSourceAndURL(t, s, srv.URL+"/record.pdf")
	claimed.ETag = `"existing-etag"`

	outcome, err := f.Run(t.Context(), source, claimed)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotModified, outcome)
}

func TestFetcherRunThrottled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f, s, cleanup := setupFetcher(t)
	defer cleanup()
	f.Transport = transport.NewDefault(5 * time.Second)

	source, claimed := seedSourceAndURL(t, s, srv.URL+"/record.pdf")

	outcome, err := f.Run(t.Context(), source, claimed)
	require.NoError(t, err)
	assert.Equal(t, OutcomeThrottled, outcome)
}

func TestFetcherRunPermanentFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f, s, cleanup := setupFetcher(t)
	defer cleanup()
	f.Transport = transport.NewDefault(5 * time.Second)

	source, claimed := seedSourceAndURL(t, s, srv.URL+"/gone.pdf")

	outcome, err := f.Run(t.Context(), source, claimed)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
}

func TestExtensionFromURL(t *testing.T) {
	assert.Equal(t, "pdf", extensionFromURL("https://example.gov/docs/report.PDF"))
	assert.Equal(t, "", extensionFromURL("https://example.gov/docs/"))
}

func TestBasenameFromURL(t *testing.T) {
	assert.Equal(t, "report.pdf", basenameFromURL("https://example.gov/docs/report.pdf?x=1"))
}
