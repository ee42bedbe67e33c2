package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/rubiojr/shelf/pkg/storage"
	"github.com/urfave/cli/v3"
)

// StatsCommand creates the stats command
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show catalog statistics",
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeStore(store)

			stats, err := store.Stats(ctx, cfg.Collection)
			if err != nil {
				return fmt.Errorf("getting stats: %w", err)
			}
			fmt.Print(formatStats(stats))
			return nil
		},
	}
}

// formatStats renders catalog statistics for the terminal
func formatStats(stats *storage.Stats) string {
	out := titleStyle.Render(fmt.Sprintf("Collection: %s", stats.Collection)) + "\n"

	out += fmt.Sprintf("%s %d\n", headerStyle.Render("Books:"), stats.TotalBooks)
	out += fmt.Sprintf("  Ebooks:     %d\n", stats.Ebooks)
	out += fmt.Sprintf("  Audiobooks: %d\n", stats.Audiobooks)

	if stats.OldestYear > 0 {
		out += fmt.Sprintf("%s %d - %d\n", headerStyle.Render("Published:"), stats.OldestYear, stats.NewestYear)
	}
	if stats.NewestBook != nil {
		out += fmt.Sprintf("%s %s\n", headerStyle.Render("Last added:"), stats.NewestBook.Local().Format("2006-01-02 15:04:05"))
	}

	if len(stats.Languages) > 0 {
		out += headerStyle.Render("Languages:") + "\n"
		langs := make([]string, 0, len(stats.Languages))
		for lang := range stats.Languages {
			langs = append(langs, lang)
		}
		sort.Slice(langs, func(i, j int) bool {
			if stats.Languages[langs[i]] != stats.Languages[langs[j]] {
				return stats.Languages[langs[i]] > stats.Languages[langs[j]]
			}
			return langs[i] < langs[j]
		})
		for _, lang := range langs {
			name := lang
			if name == "" {
				name = "(unknown)"
			}
			out += fmt.Sprintf("  %-10s %d\n", name, stats.Languages[lang])
		}
	}

	return out
}
