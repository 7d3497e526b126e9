/*
Copyright © 2026 James Lawson (jpl-au) <hello@caelisco.net>
*/

// vacuum.go implements "foiacorpus vacuum", which reclaims content-
// addressed blobs no longer referenced by any document version.
//
// Design: unlike the frontier or document tables, the CAS store has no
// soft-delete window of its own - a blob is either referenced by a
// document_versions row or it is garbage. Vacuum is the only way to
// reclaim that storage, so it supports --dry-run and requires
// confirmation (or --force) before deleting anything.
package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/foiacorpus/corpus/internal/log"
	"github.com/foiacorpus/corpus/internal/vacuum"
	"github.com/spf13/cobra"
)

func newVacuumCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "vacuum",
		Short: "Remove content-addressed blobs no longer referenced by any document",
		Long: `Remove content-addressed blobs no longer referenced by any document.

This is irreversible. Use --force to skip confirmation, --dry-run to
preview what would be removed.`,
		RunE: runVacuum,
	}
	c.Flags().BoolP("dry-run", "n", false, "Show what would be deleted without deleting")
	return c
}

func runVacuum(c *cobra.Command, _ []string) error {
	ctx := c.Context()
	dryRun, _ := c.Flags().GetBool("dry-run")
	root := Config().CASRoot()

	if dryRun {
		result, err := vacuum.Run(ctx, Out(), theStore, root, vacuum.Options{DryRun: true})
		log.Event("corpus:vacuum", "vacuum").Detail("dry_run", true).Detail("count", result.Count).Write(err)
		if err != nil {
			return PrintJSONError(fmt.Errorf("vacuum dry run: %w", err))
		}
		if JSON() {
			return PrintJSON(map[string]any{"dry_run": true, "count": result.Count, "bytes": result.Bytes, "paths": result.Paths})
		}
		return nil
	}

	if !Force() {
		preview, err := vacuum.Run(ctx, Out(), theStore, root, vacuum.Options{DryRun: true})
		if err != nil {
			return PrintJSONError(fmt.Errorf("vacuum preview: %w", err))
		}
		if preview.Count == 0 {
			return nil
		}
		fmt.Fprintf(Out(), "Permanently delete %d orphaned blob(s) (%d bytes)? This cannot be undone. [y/N] ", preview.Count, preview.Bytes)
		reader := bufio.NewReader(os.Stdin)
		response, err := reader.ReadString('\n')
		if err != nil {
			return PrintJSONError(fmt.Errorf("reading confirmation: %w", err))
		}
		if resp := strings.TrimSpace(strings.ToLower(response)); resp != "y" && resp != "yes" {
			fmt.Fprintln(Out(), "cancelled")
			return nil
		}
	}

	result, err := vacuum.Run(ctx, Out(), theStore, root, vacuum.Options{})
	log.Event("corpus:vacuum", "vacuum").Detail("count", result.Count).Detail("bytes", result.Bytes).Write(err)
	if err != nil {
		return PrintJSONError(fmt.Errorf("vacuum: %w", err))
	}
	if JSON() {
		return PrintJSON(map[string]any{"count": result.Count, "bytes": result.Bytes})
	}
	return nil
}

func init() {
	rootCmd.AddCommand(newVacuumCmd())
}
