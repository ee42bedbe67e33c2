package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rubiojr/shelf/pkg/catalog"
	"github.com/rubiojr/shelf/pkg/compiler"
	"github.com/rubiojr/shelf/pkg/config"
	"github.com/rubiojr/shelf/pkg/filter"
	"github.com/rubiojr/shelf/pkg/session"
	"github.com/rubiojr/shelf/pkg/storage"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		StorageDir: filepath.Join(t.TempDir(), "data"),
		Database:   config.DefaultDatabase,
		Collection: config.DefaultCollection,
		Server:     config.ServerConfig{Host: config.DefaultHost, Port: config.DefaultPort},
	}
}

func TestOpenStoreRequiresMigrations(t *testing.T) {
	cfg := testConfig(t)

	if _, err := openStore(cfg); !errors.Is(err, ErrPendingMigrations) {
		t.Fatalf("Expected ErrPendingMigrations, got %v", err)
	}

	if err := RunMigrations(cfg, true); err != nil {
		t.Fatalf("status: %v", err)
	}
	if err := RunMigrations(cfg, false); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	// A second run has nothing to do.
	if err := RunMigrations(cfg, false); err != nil {
		t.Fatalf("migrate again: %v", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		t.Fatalf("Expected store to open after migrating, got %v", err)
	}
	defer closeStore(store)

	books := []catalog.Book{{ID: "dune", Title: "Dune", Publisher: "Chilton Books"}}
	if err := store.PutBooks(context.Background(), cfg.Collection, books); err != nil {
		t.Fatalf("put: %v", err)
	}

	ctrl := session.New(filter.NewStore(), store, cfg.Collection)
	defer ctrl.Close()
	if err := ctrl.Navigate(context.Background(), session.NewSlugNavigation("publisher", "chilton-books")); err != nil {
		t.Fatalf("navigate: %v", err)
	}
	if err := ctrl.Settle(context.Background()); err != nil {
		t.Fatalf("settle: %v", err)
	}

	out := formatView(ctrl.View())
	for _, want := range []string{"Publisher: chilton books", "Dune", "1 books, 1 pages loaded"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestFormatView(t *testing.T) {
	view := session.View{
		Items: []catalog.Book{{
			ID: "b1", Title: "Sapiens", Author: "Yuval Noah Harari", PublishedYear: 2011,
			Language: "en", Categories: []string{"History"}, Narrator: "Derek Perkins",
		}},
		Page:     1,
		HasMore:  true,
		Criteria: filter.Criteria{Query: "harari"},
	}

	out := formatView(view)
	for _, want := range []string{"Search: harari", "Sapiens", "by Yuval Noah Harari", "2011", "narrated by Derek Perkins", "History", "more available"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}

	empty := formatView(session.View{
		Override: &compiler.Override{Field: "external_id", Value: "x1"},
		Error:    "querying books",
	})
	for _, want := range []string{"External Id: x1", "querying books", "No books found"} {
		if !strings.Contains(empty, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, empty)
		}
	}
}

func TestFormatStats(t *testing.T) {
	newest := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	out := formatStats(&storage.Stats{
		Collection: "books",
		TotalBooks: 3,
		Ebooks:     2,
		Audiobooks: 1,
		Languages:  map[string]int{"en": 2, "": 1},
		OldestYear: 1965,
		NewestYear: 2011,
		NewestBook: &newest,
	})

	for _, want := range []string{"Collection: books", "Ebooks:     2", "Audiobooks: 1", "1965 - 2011", "(unknown)"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
	if strings.Index(out, "en") > strings.Index(out, "(unknown)") {
		t.Errorf("Expected languages sorted by count, got:\n%s", out)
	}
}

func TestWatchConfigReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	write := func(services string) {
		content := "storage_dir = \"" + t.TempDir() + "\"\ndebug_services = [" + services + "]\n"
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("write config: %v", err)
		}
	}
	write("")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *config.Config, 16)
	done := make(chan error, 1)
	go func() {
		done <- watchConfig(ctx, path, func(cfg *config.Config) { reloaded <- cfg })
	}()

	// The watcher starts asynchronously; keep touching the file until it
	// notices.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for got := false; !got; {
		select {
		case cfg := <-reloaded:
			if len(cfg.DebugServices) != 1 || cfg.DebugServices[0] != "session" {
				t.Fatalf("Expected debug_services [session], got %v", cfg.DebugServices)
			}
			got = true
		case <-tick.C:
			write(`"session"`)
		case <-deadline:
			t.Fatal("Timed out waiting for config reload")
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected clean exit, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watchConfig did not return after cancel")
	}
}
