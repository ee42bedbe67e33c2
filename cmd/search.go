package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rubiojr/shelf/pkg/catalog"
	"github.com/rubiojr/shelf/pkg/filter"
	"github.com/rubiojr/shelf/pkg/session"
	"github.com/urfave/cli/v3"
)

// searchFlags maps command line flags to filter keys.
var searchFlags = []struct {
	flag  string
	key   filter.Key
	usage string
}{
	{"year-from", filter.KeyYearFrom, "Earliest publication year"},
	{"year-to", filter.KeyYearTo, "Latest publication year"},
	{"language", filter.KeyLanguage, "Language code (en, es, ...)"},
	{"format", filter.KeyFileType, "File format (epub, pdf, mp3, ...)"},
	{"type", filter.KeyBookType, "Book type: all, ebook or audiobook"},
	{"fiction-type", filter.KeyFictionType, "Fiction type"},
	{"sort", filter.KeySortBy, "Sort order: popularity, latest, title_asc, title_desc, year, size_asc, size_desc"},
}

// SearchCommand creates the search command
func SearchCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:  "field",
			Usage: "Look up a metadata field (publisher, author, year, ...) instead of free text",
		},
		&cli.StringFlag{
			Name:  "value",
			Usage: "Value for --field, hyphens read as spaces",
		},
		&cli.StringSliceFlag{
			Name:  "category",
			Usage: "Restrict to a category. Can be used multiple times",
		},
		&cli.BoolFlag{
			Name:  "exact",
			Usage: "Match the free text exactly",
		},
		&cli.IntFlag{
			Name:  "pages",
			Usage: "Number of pages to load",
			Value: 1,
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Give up after this long",
			Value: 30 * time.Second,
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Print the session view as JSON",
		},
	}
	for _, sf := range searchFlags {
		flags = append(flags, &cli.StringFlag{Name: sf.flag, Usage: sf.usage})
	}

	return &cli.Command{
		Name:      "search",
		Usage:     "Search the catalog",
		ArgsUsage: "[QUERY]",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			return searchBooks(ctx, c)
		},
	}
}

func searchBooks(ctx context.Context, c *cli.Command) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(store)

	ctx, cancel := context.WithTimeout(ctx, c.Duration("timeout"))
	defer cancel()

	ctrl := session.New(filter.NewStore(), store, cfg.Collection)
	defer ctrl.Close()

	nav := session.NewQueryNavigation(strings.Join(c.Args().Slice(), " "))
	if c.IsSet("field") || c.IsSet("value") {
		nav = session.NewSlugNavigation(c.String("field"), c.String("value"))
	}
	if err := ctrl.Navigate(ctx, nav); err != nil {
		return err
	}

	// Every change refetches; only the last fetch is kept.
	for _, sf := range searchFlags {
		if c.IsSet(sf.flag) {
			if err := ctrl.SetFilter(ctx, sf.key, c.String(sf.flag)); err != nil {
				return err
			}
		}
	}
	if c.Bool("exact") {
		if err := ctrl.SetFilter(ctx, filter.KeyExactMatch, "true"); err != nil {
			return err
		}
	}
	for _, label := range c.StringSlice("category") {
		ctrl.ToggleCategory(ctx, label)
	}

	if err := ctrl.Settle(ctx); err != nil {
		return fmt.Errorf("waiting for results: %w", err)
	}
	for page := 1; page < c.Int("pages"); page++ {
		if !ctrl.LoadMore(ctx) {
			break
		}
		if err := ctrl.Settle(ctx); err != nil {
			return fmt.Errorf("waiting for page %d: %w", page+1, err)
		}
	}

	view := ctrl.View()
	if c.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}
	fmt.Print(formatView(view))
	if view.Error != "" {
		return fmt.Errorf("search failed: %s", view.Error)
	}
	return nil
}

// formatView renders a session view for the terminal
func formatView(view session.View) string {
	var sb strings.Builder

	title := "All books"
	switch {
	case view.Override != nil:
		title = fmt.Sprintf("%s: %s", catalog.Label(view.Override.Field), view.Override.Value)
	case view.Criteria.Query != "":
		title = fmt.Sprintf("Search: %s", view.Criteria.Query)
	}
	sb.WriteString(titleStyle.Render(title) + "\n")

	if view.Error != "" {
		sb.WriteString(errorStyle.Render(view.Error) + "\n")
	}

	if len(view.Items) == 0 {
		sb.WriteString(noDataStyle.Render("No books found") + "\n")
		return sb.String()
	}

	for _, book := range view.Items {
		sb.WriteString(bookStyle.Render(formatBook(book)) + "\n")
	}

	summary := fmt.Sprintf("%d books, %d pages loaded", len(view.Items), view.Page)
	if view.HasMore {
		summary += " (more available, use --pages)"
	}
	sb.WriteString(summaryStyle.Render(summary) + "\n")

	return sb.String()
}

func formatBook(book catalog.Book) string {
	line := headerStyle.Render(book.Title)
	if book.Author != "" {
		line += " by " + book.Author
	}

	var meta []string
	if book.PublishedYear > 0 {
		meta = append(meta, fmt.Sprintf("%d", book.PublishedYear))
	}
	for _, v := range []string{book.Publisher, book.Language, book.FileType, book.BookType} {
		if v != "" {
			meta = append(meta, v)
		}
	}
	if book.Narrator != "" {
		meta = append(meta, "narrated by "+book.Narrator)
	}
	if len(book.Categories) > 0 {
		meta = append(meta, strings.Join(book.Categories, ", "))
	}
	if len(meta) > 0 {
		line += "\n" + metaStyle.Render(strings.Join(meta, " · "))
	}
	return line
}
