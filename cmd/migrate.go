package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/rubiojr/shelf/pkg/config"
	"github.com/rubiojr/shelf/pkg/db"
	"github.com/rubiojr/shelf/pkg/storage"
	"github.com/urfave/cli/v3"
)

// MigrateCommand creates the migrate command
func MigrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Run database migrations",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "status",
				Usage: "Show migration status without applying migrations",
				Value: false,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			return RunMigrations(cfg, c.Bool("status"))
		},
	}
}

// RunMigrations handles the migration process (exported for testing)
func RunMigrations(cfg *config.Config, statusOnly bool) error {
	if err := os.MkdirAll(cfg.StorageDir, 0755); err != nil {
		return fmt.Errorf("creating storage directory: %w", err)
	}

	// Plain Open: openStore refuses databases with pending migrations.
	store, err := storage.Open(cfg.DBPath())
	if err != nil {
		return err
	}
	defer closeStore(store)

	fmt.Printf("=== Database: %s ===\n", store.Path())
	migrationManager := db.NewMigrationManager(store.DB())

	if statusOnly {
		if err := showMigrationStatus(migrationManager); err != nil {
			return fmt.Errorf("showing migration status: %w", err)
		}
		fmt.Println("\nMigration status check completed")
		return nil
	}

	applied, err := migrationManager.ApplyPendingMigrations()
	if err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	if applied == 0 {
		fmt.Println("Database is up to date")
	} else {
		fmt.Printf("Applied %d migrations\n", applied)
	}

	return nil
}

// showMigrationStatus displays the current migration status
func showMigrationStatus(manager *db.MigrationManager) error {
	status, err := manager.GetMigrationStatus()
	if err != nil {
		return err
	}

	fmt.Printf("Applied migrations: %d\n", len(status.Applied))
	for _, migration := range status.Applied {
		appliedTime := "unknown"
		if migration.AppliedAt != nil {
			appliedTime = migration.AppliedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Printf("  ✓ %03d: %s (applied: %s)\n", migration.Version, migration.Name, appliedTime)
	}

	fmt.Printf("Pending migrations: %d\n", len(status.Pending))
	for _, migration := range status.Pending {
		fmt.Printf("  • %03d: %s\n", migration.Version, migration.Name)
	}

	if len(status.Pending) == 0 {
		fmt.Println("  (none - database is up to date)")
	}

	return nil
}
