// Package hash computes the dual content digests used for deduplication
// (sha256 + blake3) and derives content-addressed storage paths from them.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"io"

	"lukechampine.com/blake3"
)

// Digests holds both digests computed over the same byte stream, plus the
// stream length. Two versions are considered duplicates only when both
// digests and the size agree (spec: size mismatch despite a hash collision
// is treated as distinct content).
type Digests struct {
	SHA256 string
	BLAKE3 string
	Size   int64
}

// Sum streams r through both hash functions in a single pass via
// io.MultiWriter, avoiding buffering the payload twice.
func Sum(r io.Reader) (Digests, error) {
	sha := sha256.New()
	b3 := blake3.New(32, nil)
	mw := io.MultiWriter(sha, b3)

	n, err := io.Copy(mw, r)
	if err != nil {
		return Digests{}, err
	}

	return Digests{
		SHA256: hex.EncodeToString(sha.Sum(nil)),
		BLAKE3: hex.EncodeToString(b3.Sum(nil)),
		Size:   n,
	}, nil
}

// DerivePath builds the content-addressed relative path:
// <sha256[0:2]>/<sanitized-basename>-<sha256[0:8]>.<ext>, sharding on the
// first two hex characters to keep any single directory from accumulating
// millions of entries.
func DerivePath(sha256Hex, basename, ext string) string {
	name := Sanitize(basename)
	if name == "" {
		name = "file"
	}
	full := name + "-" + sha256Hex[:8]
	if ext != "" {
		full += "." + ext
	}
	if len(sha256Hex) < 2 {
		return full
	}
	return sha256Hex[0:2] + "/" + full
}
