package hash

import (
	"strings"
	"testing"
)

func TestStoreDedupReturnsSamePath(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, ModeCopy)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	seen := map[string]string{}
	exists := func(d Digests) (string, bool) {
		key := d.SHA256 + d.BLAKE3 + string(rune(d.Size))
		p, ok := seen[key]
		return p, ok
	}
	record := func(d Digests, path string) {
		key := d.SHA256 + d.BLAKE3 + string(rune(d.Size))
		seen[key] = path
	}

	first, err := w.Store(strings.NewReader("hello world"), "report", "pdf", exists)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	record(Digests{SHA256: first.SHA256, BLAKE3: first.BLAKE3, Size: first.Size}, first.Path)

	second, err := w.Store(strings.NewReader("hello world"), "report-again", "pdf", exists)
	if err != nil {
		t.Fatalf("Store (dup): %v", err)
	}

	if first.Path != second.Path {
		t.Errorf("expected dedup to reuse path: first=%q second=%q", first.Path, second.Path)
	}
	if first.SHA256 != second.SHA256 || first.BLAKE3 != second.BLAKE3 {
		t.Error("expected identical digests for identical bytes")
	}
}

func TestDerivePathShardsByPrefix(t *testing.T) {
	path := DerivePath("ab12cd34ef560000000000000000000000000000000000000000000000000000", "My Report!", "pdf")
	if !strings.HasPrefix(path, "ab/") {
		t.Errorf("expected shard prefix ab/, got %q", path)
	}
	if !strings.HasSuffix(path, ".pdf") {
		t.Errorf("expected .pdf suffix, got %q", path)
	}
	if strings.Contains(path, "!") {
		t.Errorf("expected sanitized basename, got %q", path)
	}
}

func TestSanitizeStripsHostileCharacters(t *testing.T) {
	if got := Sanitize("a/b\\c:d*e?f\"g<h>i|j"); strings.ContainsAny(got, `/\:*?"<>|`) {
		t.Errorf("Sanitize left hostile characters: %q", got)
	}
}
