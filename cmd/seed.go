/*
Copyright © 2026 James Lawson (jpl-au) <hello@caelisco.net>
*/

// seed.go implements "foiacorpus seed", which registers a crawl source and
// seeds its frontier with one or more starting URLs.
package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/foiacorpus/corpus/internal/log"
	"github.com/foiacorpus/corpus/internal/store"
	"github.com/spf13/cobra"
)

func newSeedCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "seed <source-id> [url]...",
		Short: "Register a crawl source and seed its frontier",
		Long: `Register a crawl source and seed its frontier with one or more URLs.

  foiacorpus seed doj-foia https://www.justice.gov/foia/reading-room
  foiacorpus seed doj-foia --file urls.txt

--file reads one URL per line (blank lines and #-comments ignored) and
adds them through one batch insert rather than one add call per URL,
the path a load-file import adapter would call (spec.md §6).

If the source already exists, only the given URLs are added to its
frontier; no existing frontier state is disturbed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runSeed,
	}
	c.Flags().String("type", "web", "Source type recorded on the source row")
	c.Flags().String("file", "", "Path to a newline-delimited file of URLs to import as a batch")
	return c
}

func runSeed(c *cobra.Command, args []string) error {
	ctx := c.Context()
	sourceID, urls := args[0], args[1:]
	sourceType, _ := c.Flags().GetString("type")
	filePath, _ := c.Flags().GetString("file")

	if filePath == "" && len(urls) == 0 {
		return PrintJSONError(fmt.Errorf("seed requires at least one url or --file"))
	}

	if _, err := theStore.GetSource(ctx, sourceID); err != nil {
		if err != store.ErrNotFound {
			return PrintJSONError(fmt.Errorf("lookup source %q: %w", sourceID, err))
		}
		s := &store.Source{
			ID:         sourceID,
			SourceType: sourceType,
			CreatedAt:  time.Now().Unix(),
		}
		if err := theStore.AddSource(ctx, s); err != nil {
			return PrintJSONError(fmt.Errorf("add source %q: %w", sourceID, err))
		}
	}

	added := 0
	requested := len(urls)
	for _, raw := range urls {
		u := &store.CrawlURL{
			SourceID:        sourceID,
			URL:             raw,
			Status:          store.URLDiscovered,
			DiscoveryMethod: "seed",
			DiscoveredAt:    time.Now().Unix(),
		}
		ok, err := theStore.AddURL(ctx, u)
		if err != nil {
			return PrintJSONError(fmt.Errorf("add url %q: %w", raw, err))
		}
		if ok {
			added++
		}
	}

	if filePath != "" {
		fileURLs, err := readURLFile(filePath)
		if err != nil {
			return PrintJSONError(fmt.Errorf("read %q: %w", filePath, err))
		}
		requested += len(fileURLs)
		n, err := theStore.ImportBatch(ctx, sourceID, fileURLs, "seed-file", time.Now().Unix())
		if err != nil {
			return PrintJSONError(fmt.Errorf("import batch from %q: %w", filePath, err))
		}
		added += n
	}

	log.Event("crawl:seed", "seed").
		SourceID(sourceID).
		Detail("requested", requested).
		Detail("added", added).
		Write(nil)

	if JSON() {
		return PrintJSON(map[string]any{"source": sourceID, "requested": requested, "added": added})
	}
	fmt.Fprintf(Out(), "seeded %s: %d/%d url(s) added\n", sourceID, added, requested)
	return nil
}

// readURLFile returns the non-blank, non-comment lines of path as URLs.
func readURLFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, scanner.Err()
}

func init() {
	rootCmd.AddCommand(newSeedCmd())
}
