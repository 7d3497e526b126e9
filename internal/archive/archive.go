// Package archive enumerates the member files of a container document
// (zip, tar, gzip-wrapped tar) into store.VirtualFile rows (spec.md §3,
// recovered from original_source's virtual_files table). No third-party
// archive library appears anywhere in the example corpus, so this package
// is built on the standard library's archive/zip, archive/tar, and
// compress/gzip rather than reaching for one.
package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/foiacorpus/corpus/internal/hash"
	"github.com/foiacorpus/corpus/internal/mime"
	"github.com/foiacorpus/corpus/internal/store"
)

// ErrUnsupportedContainer is returned for a recognised archive MIME type
// this package has no walker for (rar, 7z - no pure-Go, cgo-free library
// for either appears in the example corpus).
var ErrUnsupportedContainer = errors.New("archive: unsupported container format")

// MaxHashedMemberSize bounds how large a member's content is read into
// memory to compute its digest. Larger members still get a file_size
// recorded, just no content_hash, so a single oversized attachment can't
// stall the extract stage.
const MaxHashedMemberSize = 64 << 20 // 64MiB

// Walk enumerates path's members according to mimeType, returning one
// store.VirtualFile per entry (files and directories alike, matching the
// teacher's "is_directory" column). containerVersionID is stamped onto
// every returned row; the caller persists them via store.SaveVirtualFile.
func Walk(path, mimeType string, containerVersionID int64) ([]store.VirtualFile, error) {
	switch mimeType {
	case "application/zip", "application/x-zip", "application/x-zip-compressed":
		return walkZip(path, containerVersionID)
	case "application/x-tar":
		return walkTar(path, containerVersionID, false)
	case "application/gzip":
		return walkTar(path, containerVersionID, true)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedContainer, mimeType)
	}
}

func walkZip(path string, containerVersionID int64) ([]store.VirtualFile, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	defer r.Close()

	out := make([]store.VirtualFile, 0, len(r.File))
	for _, f := range r.File {
		vf := store.VirtualFile{
			ContainerVersionID: containerVersionID,
			ArchivePath:        f.Name,
			IsDirectory:        f.FileInfo().IsDir(),
			CompressedSize:     int64(f.CompressedSize64),
			FileSize:           int64(f.UncompressedSize64),
		}
		if vf.IsDirectory {
			out = append(out, vf)
			continue
		}
		vf.MimeType = mime.GuessFromFilename(f.Name)
		if vf.FileSize <= MaxHashedMemberSize {
			if err := hashZipMember(&vf, f); err != nil {
				return nil, err
			}
		}
		out = append(out, vf)
	}
	return out, nil
}

func hashZipMember(vf *store.VirtualFile, f *zip.File) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open zip member %s: %w", f.Name, err)
	}
	defer rc.Close()

	digests, err := hash.Sum(rc)
	if err != nil {
		return fmt.Errorf("hash zip member %s: %w", f.Name, err)
	}
	vf.ContentHash = digests.SHA256
	return nil
}

// walkTar enumerates a tar archive, optionally gzip-wrapped (.tar.gz /
// application/gzip, the common FOIA production-archive shape).
func walkTar(path string, containerVersionID int64, gzipped bool) ([]store.VirtualFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tar: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if gzipped {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open gzip: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	tr := tar.NewReader(r)
	var out []store.VirtualFile
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read tar header: %w", err)
		}

		name := strings.TrimSuffix(hdr.Name, "/")
		vf := store.VirtualFile{
			ContainerVersionID: containerVersionID,
			ArchivePath:        name,
			IsDirectory:        hdr.Typeflag == tar.TypeDir,
			FileSize:           hdr.Size,
			CompressedSize:     hdr.Size, // tar is uncompressed per-entry; the gzip layer compresses the whole stream
		}
		if vf.IsDirectory || hdr.Typeflag != tar.TypeReg {
			out = append(out, vf)
			continue
		}
		vf.MimeType = mime.GuessFromFilename(name)
		if vf.FileSize <= MaxHashedMemberSize {
			digests, err := hash.Sum(tr)
			if err != nil {
				return nil, fmt.Errorf("hash tar member %s: %w", name, err)
			}
			vf.ContentHash = digests.SHA256
		}
		out = append(out, vf)
	}
	return out, nil
}
