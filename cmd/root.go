/*
Copyright © 2026 James Lawson (jpl-au) <hello@caelisco.net>
*/

// root.go defines the root command and CLI execution entry point.
//
// Separated from the verb files (seed.go, crawl.go, ...) to isolate cobra
// setup from command logic.
//
// Design: PersistentPreRunE opens the store lazily - only commands that
// need it trigger store initialisation. This enables bootstrap commands
// (config) to work without a corpus existing yet. The noStoreCommands map
// controls which commands skip initialisation.

package cmd

import (
	"fmt"
	"os"
	"slices"

	"github.com/foiacorpus/corpus/internal/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "foiacorpus",
	Short: "Acquires, deduplicates, and enriches public-records documents into a queryable corpus",
	Long:  `A crawl-and-annotate engine for FOIA releases, agency dumps, and e-discovery load files: a persistent URL frontier, content-addressed versioned storage, and a multi-stage annotation pipeline.`,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if output != "" && !slices.Contains(validOutputFormats, output) {
			return fmt.Errorf("invalid output format: %s (valid: %v)", output, validOutputFormats)
		}

		cmdName := topLevelCmdName(cmd)
		if !noStoreCommands[cmdName] {
			if err := initStore(cmd.Context()); err != nil {
				if JSON() {
					_ = PrintJSON(map[string]string{"error": err.Error()})
					cmd.SilenceErrors = true
					cmd.SilenceUsage = true
				}
				return fmt.Errorf("initialise store: %w", err)
			}
		}

		return nil
	},
}

// topLevelCmdName returns the name of the top-level command (direct child
// of root). For "foiacorpus crawl run", returns "crawl".
func topLevelCmdName(cmd *cobra.Command) string {
	for cmd.HasParent() && cmd.Parent().HasParent() {
		cmd = cmd.Parent()
	}
	return cmd.Name()
}

// noStoreCommands lists top-level verbs that must work without an
// initialised store (reading/writing config before a corpus exists).
var noStoreCommands = map[string]bool{
	"config":  true,
	"help":    true,
	"version": true,
}

// Execute runs the root command and handles process lifecycle. Opens
// audit logging, executes the command, and ensures the store closes on
// exit. Exit code 1 indicates error.
func Execute() {
	if err := log.Open(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: audit log unavailable: %v\n", err)
	}
	defer log.Close()

	err := rootCmd.Execute()

	if theStore != nil {
		if closeErr := theStore.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "warning: closing store: %v\n", closeErr)
		}
	}

	if err != nil {
		os.Exit(1)
	}
}

// RootCmd returns the root command for testing.
func RootCmd() *cobra.Command {
	return rootCmd
}
