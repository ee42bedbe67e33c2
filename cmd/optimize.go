package cmd

import (
	"context"
	"fmt"

	"github.com/rubiojr/shelf/pkg/storage"
	"github.com/urfave/cli/v3"
)

// OptimizeCommand creates the optimize command
func OptimizeCommand() *cli.Command {
	return &cli.Command{
		Name:  "optimize",
		Usage: "Database optimization and maintenance commands",
		Commands: []*cli.Command{
			{
				Name:  "check",
				Usage: "Run an integrity check on the catalog database",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withStore(c, func(store *storage.Store) error {
						return checkDatabase(ctx, store)
					})
				},
			},
			{
				Name:  "analyze",
				Usage: "Run ANALYZE to update query planner statistics",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withStore(c, func(store *storage.Store) error {
						return runStep("ANALYZE", store.Analyze)
					})
				},
			},
			{
				Name:  "vacuum",
				Usage: "Run VACUUM to defragment the database",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withStore(c, func(store *storage.Store) error {
						return runStep("VACUUM", store.Vacuum)
					})
				},
			},
			{
				Name:  "checkpoint",
				Usage: "Checkpoint and truncate the write-ahead log",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withStore(c, func(store *storage.Store) error {
						return runStep("WAL checkpoint", store.WALCheckpoint)
					})
				},
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return withStore(c, optimizeAll)
		},
	}
}

func withStore(c *cli.Command, fn func(*storage.Store) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(store)
	return fn(store)
}

// optimizeAll runs every maintenance step except VACUUM, which rewrites
// the whole file.
func optimizeAll(store *storage.Store) error {
	fmt.Printf("Running all optimization operations on %s...\n", store.Path())
	steps := []struct {
		name string
		fn   func() error
	}{
		{"PRAGMA optimize", store.Optimize},
		{"ANALYZE", store.Analyze},
		{"WAL checkpoint", store.WALCheckpoint},
	}
	for _, step := range steps {
		if err := runStep(step.name, step.fn); err != nil {
			return err
		}
	}
	return nil
}

func runStep(name string, fn func() error) error {
	fmt.Printf("%s... ", name)
	if err := fn(); err != nil {
		fmt.Printf("✗ FAILED - %v\n", err)
		return fmt.Errorf("%s: %w", name, err)
	}
	fmt.Printf("✓ OK\n")
	return nil
}

func checkDatabase(ctx context.Context, store *storage.Store) error {
	fmt.Printf("Checking %s... ", store.Path())
	problems, err := store.IntegrityCheck(ctx)
	if err != nil {
		fmt.Printf("✗ FAILED - %v\n", err)
		return err
	}
	if len(problems) == 0 {
		fmt.Printf("✓ OK\n")
		return nil
	}
	fmt.Printf("✗ %d problems\n", len(problems))
	for _, p := range problems {
		fmt.Printf("  %s\n", p)
	}
	return fmt.Errorf("integrity check found %d problems", len(problems))
}
