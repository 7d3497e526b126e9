// Package mime categorises documents by MIME type and guesses MIME types
// from filenames and URLs when a fetch response omits Content-Type.
package mime

import "strings"

var documentExtensions = map[string]bool{
	"pdf": true, "doc": true, "docx": true,
	"xls": true, "xlsx": true, "ppt": true, "pptx": true,
}

var fileExtensions = map[string]bool{
	"pdf": true, "doc": true, "docx": true, "xls": true, "xlsx": true,
	"ppt": true, "pptx": true, "jpg": true, "jpeg": true, "png": true,
	"gif": true, "tif": true, "tiff": true, "bmp": true, "zip": true,
}

var extToMime = map[string]string{
	"pdf":  "application/pdf",
	"doc":  "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"xls":  "application/vnd.ms-excel",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"ppt":  "application/vnd.ms-powerpoint",
	"pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"txt":  "text/plain",
	"html": "text/html",
	"htm":  "text/html",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"tif":  "image/tiff",
	"tiff": "image/tiff",
	"bmp":  "image/bmp",
	"msg":  "application/vnd.ms-outlook",
	"eml":  "message/rfc822",
	"zip":  "application/zip",
}

// DefaultMimeType is returned when an extension is unrecognised.
const DefaultMimeType = "application/octet-stream"

// GuessFromFilename guesses a MIME type from a filename's extension.
func GuessFromFilename(name string) string {
	ext := extension(name)
	if m, ok := extToMime[ext]; ok {
		return m
	}
	return DefaultMimeType
}

// GuessFromURL guesses a MIME type from a URL, stripping query and fragment first.
func GuessFromURL(u string) string {
	return GuessFromFilename(urlPath(u))
}

// mimeToExt is the reverse of extToMime, consulted by the CAS writer's
// extension resolution (spec 4.A) when neither the URL path nor the
// original filename carries a usable extension.
var mimeToExt = func() map[string]string {
	m := make(map[string]string, len(extToMime))
	// Prefer the shorter/canonical extension when multiple map to one MIME
	// type (txt before no alias conflicts exist today, but iterating a
	// fixed literal order keeps this deterministic across builds).
	order := []string{"pdf", "doc", "docx", "xls", "xlsx", "ppt", "pptx", "txt", "html", "jpg", "png", "gif", "tif", "bmp", "msg", "eml", "zip"}
	for _, ext := range order {
		if mt, ok := extToMime[ext]; ok {
			if _, taken := m[mt]; !taken {
				m[mt] = ext
			}
		}
	}
	return m
}()

// ExtensionFor returns the canonical file extension for a MIME type, or
// "" if unrecognised. Used as the CAS writer's last-resort extension
// source, after the URL path and original_filename.
func ExtensionFor(mimeType string) string {
	return mimeToExt[strings.ToLower(mimeType)]
}

// HasDocumentExtension reports whether a URL path ends in a known document extension.
func HasDocumentExtension(u string) bool {
	return documentExtensions[extension(urlPath(u))]
}

// HasFileExtension reports whether a URL path ends in any known file extension
// (documents, images, or archives).
func HasFileExtension(u string) bool {
	return fileExtensions[extension(urlPath(u))]
}

// IsExtractable reports whether the page extractor supports the given MIME type.
func IsExtractable(mimeType string) bool {
	switch mimeType {
	case "application/pdf", "image/png", "image/jpeg", "image/tiff", "image/gif",
		"image/bmp", "text/plain", "text/html":
		return true
	default:
		return false
	}
}

// IsDocument reports whether a MIME type represents a records-relevant document format.
func IsDocument(mimeType string) bool {
	switch mimeType {
	case "application/pdf",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.ms-excel",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/vnd.ms-powerpoint",
		"application/vnd.openxmlformats-officedocument.presentationml.presentation",
		"text/html", "application/xhtml+xml":
		return true
	default:
		return false
	}
}

// Category is one of the six buckets FileCategories aggregates over.
type Category string

const (
	CategoryDocuments Category = "documents"
	CategoryMarkup    Category = "markup"
	CategoryImages    Category = "images"
	CategoryData      Category = "data"
	CategoryArchives  Category = "archives"
	CategoryOther     Category = "other"
)

// DisplayName returns the human-readable label for a category.
func (c Category) DisplayName() string {
	switch c {
	case CategoryDocuments:
		return "Documents"
	case CategoryMarkup:
		return "Markup"
	case CategoryImages:
		return "Images"
	case CategoryData:
		return "Data"
	case CategoryArchives:
		return "Archives"
	default:
		return "Other"
	}
}

// AllCategories lists every category in display order.
func AllCategories() []Category {
	return []Category{CategoryDocuments, CategoryMarkup, CategoryImages, CategoryData, CategoryArchives, CategoryOther}
}

// CategoryFromID parses a category from its string id, accepting a few
// historical aliases (pdf/text/email -> documents, html/xml -> markup).
func CategoryFromID(id string) (Category, bool) {
	switch strings.ToLower(id) {
	case "documents", "pdf", "text", "email":
		return CategoryDocuments, true
	case "markup", "html", "xml":
		return CategoryMarkup, true
	case "images":
		return CategoryImages, true
	case "data":
		return CategoryData, true
	case "archives":
		return CategoryArchives, true
	case "other":
		return CategoryOther, true
	default:
		return "", false
	}
}

// TypeCategory is the authoritative MIME type -> category mapping. It is the
// single source of truth consulted everywhere a document's category is
// derived: on write (to maintain FileCategories' running counts) and on
// category-filtered search (via CategoryMimePatterns' SQL LIKE clauses).
func TypeCategory(mimeType string) Category {
	m := strings.ToLower(mimeType)

	switch {
	case m == "text/html" || m == "application/xhtml+xml" || m == "text/xml" || m == "application/xml":
		return CategoryMarkup
	case m == "application/pdf",
		strings.Contains(m, "word"),
		m == "application/msword",
		strings.Contains(m, "rfc822"),
		strings.HasPrefix(m, "message/"),
		strings.HasPrefix(m, "text/") && m != "text/csv":
		return CategoryDocuments
	case strings.HasPrefix(m, "image/"):
		return CategoryImages
	case strings.Contains(m, "spreadsheet"),
		strings.Contains(m, "excel"),
		m == "application/vnd.ms-excel",
		m == "text/csv",
		m == "application/json":
		return CategoryData
	case m == "application/zip", m == "application/x-zip", m == "application/x-zip-compressed",
		m == "application/x-tar", m == "application/gzip",
		m == "application/x-rar-compressed", m == "application/x-7z-compressed":
		return CategoryArchives
	default:
		return CategoryOther
	}
}

// Icon returns a short bracketed label for a MIME type, used in CLI listings.
func Icon(mimeType string) string {
	switch {
	case mimeType == "application/pdf":
		return "[pdf]"
	case strings.HasPrefix(mimeType, "image/"):
		return "[img]"
	case strings.Contains(mimeType, "word"):
		return "[doc]"
	case strings.Contains(mimeType, "excel") || strings.Contains(mimeType, "spreadsheet"):
		return "[xls]"
	case mimeType == "text/html":
		return "[htm]"
	case mimeType == "text/plain":
		return "[txt]"
	case mimeType == "message/rfc822":
		return "[eml]"
	case mimeType == "application/zip" || mimeType == "application/x-zip" || mimeType == "application/x-zip-compressed":
		return "[zip]"
	default:
		return "[---]"
	}
}

// CategoryMimePatterns returns SQL LIKE patterns matching a category's MIME
// types, used by the store's category-filtered search to build a WHERE
// clause without hardcoding the mapping a second time in SQL.
func CategoryMimePatterns(category Category) []string {
	switch category {
	case CategoryDocuments:
		return []string{"application/pdf", "%word%", "application/msword", "%rfc822%", "message/%", "text/plain", "text/rtf"}
	case CategoryMarkup:
		return []string{"text/html", "application/xhtml+xml", "text/xml", "application/xml"}
	case CategoryImages:
		return []string{"image/%"}
	case CategoryData:
		return []string{"%spreadsheet%", "%excel%", "application/vnd.ms-excel", "text/csv", "application/json"}
	case CategoryArchives:
		return []string{"application/zip", "application/x-zip", "application/x-zip-compressed", "application/x-tar", "application/gzip", "application/x-rar-compressed", "application/x-7z-compressed"}
	default:
		return nil
	}
}

func extension(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}

func urlPath(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		u = u[:i]
	}
	if i := strings.IndexByte(u, '#'); i >= 0 {
		u = u[:i]
	}
	return u
}
