package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"
)

// ImportCommand creates the import command
func ImportCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import books from JSON Lines files (.jsonl, .gz, .zst)",
		ArgsUsage: "FILE... (use - for stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "collection",
				Usage: "Target collection (defaults to the configured one)",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			files := c.Args().Slice()
			if len(files) == 0 {
				return fmt.Errorf("at least one file is required")
			}
			return importFiles(ctx, c, files)
		},
	}
}

func importFiles(ctx context.Context, c *cli.Command, files []string) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	collection := cfg.Collection
	if name := c.String("collection"); name != "" {
		collection = name
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(store)

	total := 0
	for _, file := range files {
		start := time.Now()
		var n int
		if file == "-" {
			n, err = store.Import(ctx, collection, os.Stdin)
		} else {
			n, err = store.ImportFile(ctx, collection, file)
		}
		total += n
		if err != nil {
			return fmt.Errorf("importing %s (%d books stored before the error): %w", file, n, err)
		}
		fmt.Printf("%s: %d books in %v\n", file, n, time.Since(start).Round(time.Millisecond))
	}

	fmt.Printf("Imported %d books into %s\n", total, collection)
	return nil
}
