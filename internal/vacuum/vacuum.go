// Package vacuum reclaims content-addressed blobs no longer referenced by
// any document version. Unlike a soft-delete table, the CAS store has no
// recovery window of its own: a blob is either live (referenced by some
// document_versions row) or garbage, so vacuum is the only way to reclaim
// that storage.
package vacuum

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/foiacorpus/corpus/internal/progress"
	"github.com/foiacorpus/corpus/internal/store"
)

// Options configures vacuum scope and safety checks.
type Options struct {
	DryRun bool // Preview without deleting
}

// Result reports what was (or would be) removed.
type Result struct {
	Count int      // number of orphaned blobs
	Bytes int64    // total size of orphaned blobs
	Paths []string // relative paths, populated in dry-run mode
}

// Run walks casRoot, diffs it against every file_path referenced by s, and
// removes (or, in dry-run mode, reports) every blob with no referencing
// version.
func Run(ctx context.Context, w io.Writer, s store.Store, casRoot string, opts Options) (Result, error) {
	var result Result

	live, err := s.AllFilePaths(ctx)
	if err != nil {
		return result, fmt.Errorf("list referenced file paths: %w", err)
	}

	var orphans []string
	err = filepath.WalkDir(casRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(casRoot, path)
		if err != nil {
			return err
		}
		if live[rel] {
			return nil
		}
		orphans = append(orphans, rel)
		if info, err := d.Info(); err == nil {
			result.Bytes += info.Size()
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return result, fmt.Errorf("walk cas root: %w", err)
	}
	result.Count = len(orphans)

	if opts.DryRun {
		result.Paths = orphans
		if result.Count == 0 {
			fmt.Fprintln(w, "No blobs to vacuum")
		} else {
			for _, p := range orphans {
				fmt.Fprintf(w, "Would delete: %s\n", p)
			}
			fmt.Fprintf(w, "\nWould reclaim %d blob(s), %d byte(s)\n", result.Count, result.Bytes)
		}
		return result, nil
	}

	if result.Count == 0 {
		fmt.Fprintln(w, "No blobs to vacuum")
		return result, nil
	}

	spin := progress.NewSpinner("Vacuuming")
	spin.Start()
	deleted := 0
	for _, rel := range orphans {
		spin.Tick()
		if err := os.Remove(filepath.Join(casRoot, rel)); err != nil && !os.IsNotExist(err) {
			spin.Stop()
			return result, fmt.Errorf("remove %s: %w", rel, err)
		}
		deleted++
	}
	spin.Stop()
	result.Count = deleted

	fmt.Fprintf(w, "Vacuumed %d blob(s), %d byte(s) reclaimed\n", result.Count, result.Bytes)
	return result, nil
}
