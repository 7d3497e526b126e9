/*
Copyright © 2026 James Lawson (jpl-au) <hello@caelisco.net>
*/

// store.go lazily opens the configured storage backend for commands that
// need it (seed, crawl, annotate, stats, vacuum), per root.go's
// PersistentPreRunE gate.
package cmd

import (
	"context"
	"fmt"

	"github.com/foiacorpus/corpus/internal/config"
	"github.com/foiacorpus/corpus/internal/store"
)

var (
	theStore *store.DB
	theConfig *config.Config
)

// Config returns the operator configuration loaded when the store was
// initialised. It does not initialise the store itself.
func Config() *config.Config { return theConfig }

// Store returns the initialised store for commands' use.
func Store() *store.DB { return theStore }

// initStore loads configuration and opens the configured backend exactly
// once per process.
func initStore(ctx context.Context) error {
	if theStore != nil {
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	theConfig = cfg

	switch cfg.StorageBackend() {
	case "sqlite":
		path := cfg.Storage.Path
		if path == "" {
			path = "foiacorpus.db"
		}
		backend, err := store.OpenSQLite(path)
		if err != nil {
			return fmt.Errorf("open sqlite backend: %w", err)
		}
		theStore = store.New(backend)
	case "postgres":
		if cfg.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn must be set for the postgres backend")
		}
		backend, err := store.OpenPostgres(ctx, cfg.Storage.DSN)
		if err != nil {
			return fmt.Errorf("open postgres backend: %w", err)
		}
		theStore = store.New(backend)
	default:
		return fmt.Errorf("unsupported storage.backend %q", cfg.StorageBackend())
	}

	return nil
}
