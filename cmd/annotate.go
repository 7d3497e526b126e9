/*
Copyright © 2026 James Lawson (jpl-au) <hello@caelisco.net>
*/

// annotate.go implements "foiacorpus annotate", which drives the
// extract -> ocr -> finalize -> summarize -> entities -> date stage DAG
// over documents in a source.
package cmd

import (
	"fmt"

	"github.com/foiacorpus/corpus/internal/annotate"
	"github.com/foiacorpus/corpus/internal/llm"
	"github.com/foiacorpus/corpus/internal/log"
	"github.com/foiacorpus/corpus/internal/ocr"
	"github.com/foiacorpus/corpus/internal/progress"
	"github.com/foiacorpus/corpus/internal/store"
	"github.com/spf13/cobra"
)

func newAnnotateCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "annotate",
		Short: "Run the annotation pipeline over downloaded documents",
		Long: `Run the annotation pipeline over downloaded documents.

  foiacorpus annotate --source doj-foia

Drives each eligible document through extract, ocr, finalize, summarize,
entities, and date in order. A document only advances through the stages
its current status and NeedsAnnotation gating allow; stages never block on
a sibling document's failure.`,
		RunE: runAnnotate,
	}
	return c
}

func runAnnotate(c *cobra.Command, _ []string) error {
	ctx := c.Context()
	sourceID := SourceID()
	cfg := Config()

	runner := annotate.New(theStore, ocr.NoOp{}, llm.NoOp{}, annotate.Config{
		CASRoot:         cfg.CASRoot(),
		MinCharsPerPage: cfg.MinCharsPerPage(),
	})

	var extracted, ocred, finalized, summarized, entitied, dated, failed int

	processStage := func(status store.DocumentStatus, label string, run func(*store.Document) error) error {
		cursor := ""
		for {
			docs, err := theStore.Browse(ctx, store.BrowseFilter{SourceID: sourceID, Status: status, Cursor: cursor, Limit: 100})
			if err != nil {
				return fmt.Errorf("browse %s documents: %w", status, err)
			}
			if len(docs) == 0 {
				return nil
			}
			spin := progress.NewSpinner(label)
			spin.Start()
			for i := range docs {
				doc := &docs[i]
				spin.Tick()
				err := run(doc)
				log.Event("annotate:"+label, label).DocumentID(doc.ID).Write(err)
				if err != nil {
					failed++
				}
				cursor = doc.ID
			}
			spin.Stop()
		}
	}

	if err := processStage(store.StatusDownloaded, "extract", func(doc *store.Document) error {
		if err := runner.Extract(ctx, doc); err != nil {
			return err
		}
		extracted++
		if err := runner.OCR(ctx, doc); err != nil {
			return err
		}
		ocred++
		if err := runner.Finalize(ctx, doc); err != nil {
			return err
		}
		finalized++
		return nil
	}); err != nil {
		return PrintJSONError(err)
	}

	if err := processStage(store.StatusOCRComplete, "summarize", func(doc *store.Document) error {
		if err := runner.Summarize(ctx, doc); err != nil {
			return err
		}
		summarized++
		return nil
	}); err != nil {
		return PrintJSONError(err)
	}

	for _, status := range []store.DocumentStatus{store.StatusOCRComplete, store.StatusIndexed} {
		if err := processStage(status, "entities", func(doc *store.Document) error {
			if err := runner.Entities(ctx, doc); err != nil {
				return err
			}
			entitied++
			if err := runner.Date(ctx, doc); err != nil {
				return err
			}
			dated++
			return nil
		}); err != nil {
			return PrintJSONError(err)
		}
	}

	result := map[string]any{
		"source":     sourceID,
		"extracted":  extracted,
		"ocr":        ocred,
		"finalized":  finalized,
		"summarized": summarized,
		"entities":   entitied,
		"dated":      dated,
		"failed":     failed,
	}
	if JSON() {
		return PrintJSON(result)
	}
	fmt.Fprintf(Out(), "annotated %s: extract=%d ocr=%d finalize=%d summarize=%d entities=%d date=%d failed=%d\n",
		sourceID, extracted, ocred, finalized, summarized, entitied, dated, failed)
	return nil
}

func init() {
	rootCmd.AddCommand(newAnnotateCmd())
}
