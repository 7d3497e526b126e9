/*
Copyright © 2026 James Lawson (jpl-au) <hello@caelisco.net>
*/

// stats.go implements "foiacorpus stats", a corpus-wide summary.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show corpus-wide document and frontier counts",
		RunE:  runStats,
	}
}

func runStats(c *cobra.Command, _ []string) error {
	ctx := c.Context()

	totals, err := theStore.Totals(ctx)
	if err != nil {
		return PrintJSONError(fmt.Errorf("totals: %w", err))
	}

	if JSON() {
		return PrintJSON(map[string]any{
			"documents":       totals.Documents,
			"versions":        totals.Versions,
			"pending_urls":    totals.PendingURLs,
			"fetched_urls":    totals.FetchedURLs,
			"exhausted_urls":  totals.ExhaustedURLs,
			"category_counts": totals.CategoryCounts,
		})
	}

	fmt.Fprintf(Out(), "documents:      %d\n", totals.Documents)
	fmt.Fprintf(Out(), "versions:       %d\n", totals.Versions)
	fmt.Fprintf(Out(), "pending urls:   %d\n", totals.PendingURLs)
	fmt.Fprintf(Out(), "fetched urls:   %d\n", totals.FetchedURLs)
	fmt.Fprintf(Out(), "exhausted urls: %d\n", totals.ExhaustedURLs)
	fmt.Fprintln(Out(), "categories:")
	for cat, n := range totals.CategoryCounts {
		fmt.Fprintf(Out(), "  %-12s %d\n", cat, n)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(newStatsCmd())
}
