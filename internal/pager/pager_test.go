package pager

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestExtractTextPlain(t *testing.T) {
	path := writeTemp(t, "notes.txt", "a short memo")
	pages, err := Extract(path, "text/plain", Config{MinCharsPerPage: 100})
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "a short memo", pages[0].PDFText)
	assert.False(t, pages[0].NeedsOCR)
}

func TestExtractHTML(t *testing.T) {
	path := writeTemp(t, "page.html", "<html><body>hello</body></html>")
	pages, err := Extract(path, "text/html", Config{MinCharsPerPage: 10})
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.False(t, pages[0].NeedsOCR)
}

func TestExtractImageAlwaysNeedsOCR(t *testing.T) {
	path := writeTemp(t, "scan.png", "not-really-a-png")
	pages, err := Extract(path, "image/png", Config{})
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.True(t, pages[0].NeedsOCR)
	assert.Empty(t, pages[0].PDFText)
}

func TestExtractUnsupportedMimeType(t *testing.T) {
	path := writeTemp(t, "data.csv", "a,b,c")
	_, err := Extract(path, "text/csv", Config{})
	assert.Error(t, err)
}

func TestExtractPDFInvalidContentErrors(t *testing.T) {
	path := writeTemp(t, "fake.pdf", "not a real pdf")
	_, err := Extract(path, "application/pdf", Config{})
	assert.Error(t, err)
}

func TestSufficientText(t *testing.T) {
	assert.True(t, sufficientText("enough characters here to pass", 10))
	assert.False(t, sufficientText("  ", 1))
	assert.False(t, sufficientText("short", 100))
}

func TestCategoryExtractable(t *testing.T) {
	assert.True(t, CategoryExtractable("application/pdf"))
	assert.True(t, CategoryExtractable("text/html"))
}
