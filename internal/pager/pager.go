// Package pager splits a newly stored document version into logical pages
// with per-page native-text state (spec.md §4.F). PDFs are split into true
// pages via github.com/ledongthuc/pdf (pure Go, no cgo, matching the
// teacher and pack's avoidance of cgo dependencies). Plain-text and HTML
// become a single page; images become one page awaiting OCR.
package pager

import (
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/foiacorpus/corpus/internal/mime"
)

// Page is one extracted page, ready for store.DocumentPage insertion. The
// caller attaches DocumentID/VersionID/PageNumber.
type Page struct {
	PDFText   string
	NeedsOCR  bool // false when the native text layer is judged sufficient
}

// Config bounds the pager's text-sufficiency decision. MinCharsPerPage
// resolves spec.md §9's "implementer should surface this as an explicit
// configurable threshold" Open Question.
type Config struct {
	MinCharsPerPage int
}

// Extract splits path's content (already on disk under the CAS root) into
// pages according to mimeType. It returns an error (no sentinel) for MIME
// types the extractor does not handle; callers should still create a single
// page row with NeedsOCR=false in that case if they want the document to
// advance (spec.md §4.F only names PDF/plain/HTML/images as extractable).
func Extract(path, mimeType string, cfg Config) ([]Page, error) {
	switch {
	case mimeType == "application/pdf":
		return extractPDF(path, cfg)
	case mimeType == "text/plain", mimeType == "text/html":
		return extractText(path)
	case strings.HasPrefix(mimeType, "image/"):
		return []Page{{NeedsOCR: true}}, nil
	default:
		return nil, fmt.Errorf("pager: unsupported mime type %q", mimeType)
	}
}

func extractPDF(path string, cfg Config) ([]Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat pdf: %w", err)
	}

	reader, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}

	n := reader.NumPage()
	pages := make([]Page, 0, n)
	for i := 1; i <= n; i++ {
		p := reader.Page(i)
		text, err := p.GetPlainText(nil)
		if err != nil {
			// Malformed content: record as needing OCR rather than
			// failing the whole extraction (spec.md §7's "Malformed
			// content" error kind - the version is stored as-is, the
			// extractor records a per-page failed/pending status).
			pages = append(pages, Page{NeedsOCR: true})
			continue
		}
		pages = append(pages, Page{
			PDFText:  text,
			NeedsOCR: !sufficientText(text, cfg.MinCharsPerPage),
		})
	}
	if len(pages) == 0 {
		pages = append(pages, Page{NeedsOCR: true})
	}
	return pages, nil
}

func extractText(path string) ([]Page, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read text: %w", err)
	}
	return []Page{{PDFText: string(b), NeedsOCR: false}}, nil
}

// sufficientText reports whether a page's native text layer is dense
// enough to skip OCR, per the configurable chars-per-page threshold.
func sufficientText(text string, minChars int) bool {
	return len(strings.TrimSpace(text)) >= minChars
}

// CategoryExtractable reports whether a document's category is one the
// pager can produce pages for at all, used by callers deciding whether to
// invoke Extract in the first place.
func CategoryExtractable(mimeType string) bool {
	return mime.IsExtractable(mimeType)
}
