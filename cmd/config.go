/*
Copyright © 2026 James Lawson (jpl-au) <hello@caelisco.net>
*/

// config.go implements "foiacorpus config" for reading and writing
// operator configuration (storage backend, rate-limit bounds, pager
// threshold, crawl retry tuning).
package cmd

import (
	"fmt"

	"github.com/foiacorpus/corpus/internal/config"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "config [key] [value]",
		Short: "View or set config values",
		Long: `View or set config values.

  foiacorpus config                        # show config
  foiacorpus config rate_limit.floor_ms     # show one value
  foiacorpus config rate_limit.floor_ms 500 # set a value

Configuration locations:
  Global: ~/.foiacorpus/config.yaml
  Local:  .foiacorpus/config.yaml

Uses local config if it exists, otherwise global. Writes go to the same
place reads come from. Use --local to force local.`,
		Args: cobra.MaximumNArgs(2),
		RunE: runConfig,
	}
	c.Flags().Bool("local", false, "Use local config (.foiacorpus/config.yaml)")
	return c
}

func runConfig(c *cobra.Command, args []string) error {
	forceLocal, _ := c.Flags().GetBool("local")

	var cfg *config.Config
	var err error
	if forceLocal {
		cfg, err = config.LoadScope(config.ScopeLocal)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return PrintJSONError(fmt.Errorf("config load: %w", err))
	}

	switch len(args) {
	case 0:
		if JSON() {
			return PrintJSON(cfg.All())
		}
		for k, v := range cfg.All() {
			fmt.Fprintf(Out(), "%s: %s\n", k, v)
		}
		return nil

	case 1:
		v, err := cfg.Get(args[0])
		if err != nil {
			return PrintJSONError(fmt.Errorf("config get %q: %w", args[0], err))
		}
		if JSON() {
			return PrintJSON(map[string]string{args[0]: v})
		}
		fmt.Fprintln(Out(), v)
		return nil

	default:
		if err := cfg.Set(args[0], args[1]); err != nil {
			return PrintJSONError(fmt.Errorf("config set %q: %w", args[0], err))
		}
		if err := cfg.Save(); err != nil {
			return PrintJSONError(fmt.Errorf("config save: %w", err))
		}
		if JSON() {
			return PrintJSON(map[string]string{args[0]: args[1]})
		}
		fmt.Fprintf(Out(), "%s: %s\n", args[0], args[1])
		return nil
	}
}

func init() {
	rootCmd.AddCommand(newConfigCmd())
}
