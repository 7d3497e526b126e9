package fetch

import (
	"bytes"
	"io"
	"net/url"
	"path"
	"strings"
)

func bytesReader(b []byte) io.Reader {
	return bytes.NewReader(b)
}

// basenameFromURL extracts the last path segment to inform the CAS
// writer's desired basename (spec.md §4.A).
func basenameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return path.Base(u.Path)
}

// extensionFromURL extracts the extension from a URL's path, the first
// entry in the CAS writer's extension resolution order (spec.md §4.A).
func extensionFromURL(raw string) string {
	base := basenameFromURL(raw)
	idx := strings.LastIndex(base, ".")
	if idx < 0 || idx == len(base)-1 {
		return ""
	}
	return strings.ToLower(base[idx+1:])
}
