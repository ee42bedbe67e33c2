package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/rubiojr/shelf/pkg/config"
	"github.com/rubiojr/shelf/pkg/db"
	"github.com/rubiojr/shelf/pkg/log"
	"github.com/rubiojr/shelf/pkg/storage"
	"github.com/urfave/cli/v3"
)

// ErrPendingMigrations is returned when the catalog schema is behind.
var ErrPendingMigrations = errors.New("database has pending migrations")

// loadConfig reads the --config file and applies the logging settings from
// it and from --debug.
func loadConfig(c *cli.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	applyLogging(cfg, c.Bool("debug"))
	return cfg, nil
}

func applyLogging(cfg *config.Config, debug bool) {
	log.SetGlobalDebug(debug)
	log.SetDebugServices(cfg.DebugServices)
}

// openStore opens the configured catalog. It refuses to open a database
// with pending migrations so commands never query an old schema.
func openStore(cfg *config.Config) (*storage.Store, error) {
	if err := os.MkdirAll(cfg.StorageDir, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	store, err := storage.Open(cfg.DBPath())
	if err != nil {
		return nil, err
	}

	status, err := db.NewMigrationManager(store.DB()).GetMigrationStatus()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("checking migrations: %w", err)
	}
	if n := len(status.Pending); n > 0 {
		store.Close()
		return nil, fmt.Errorf("%w (%d), run 'shelf migrate' first", ErrPendingMigrations, n)
	}

	return store, nil
}

func closeStore(store *storage.Store) {
	if err := store.Close(); err != nil {
		fmt.Printf("Warning: failed to close database: %v\n", err)
	}
}
