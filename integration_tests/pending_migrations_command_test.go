package integration_tests

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rubiojr/shelf/cmd"
	"github.com/rubiojr/shelf/pkg/db"
	"github.com/rubiojr/shelf/pkg/storage"
)

// TestCommandsAbortOnPendingMigrations verifies that commands reading the
// catalog refuse to run while the database schema is behind, and that
// migrate brings it up to date.
//
// Scenario:
//  1. Create catalog.db with only the first migration marked as applied.
//  2. Run serve, search and stats; expect cmd.ErrPendingMigrations.
//  3. Run migrate --status; it reports the pending migrations.
//  4. Run migrate; the commands work again.
func TestCommandsAbortOnPendingMigrations(t *testing.T) {
	tempDir := t.TempDir()
	configPath := writeTestConfig(t, tempDir)

	store, err := storage.Open(filepath.Join(tempDir, "catalog.db"))
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	migrations, err := db.GetEmbeddedMigrations()
	if err != nil || len(migrations) < 2 {
		t.Fatalf("expected at least two embedded migrations, got %d (%v)", len(migrations), err)
	}
	manager := db.NewMigrationManager(store.DB())
	if err := manager.EnsureMigrationsTable(); err != nil {
		t.Fatalf("failed to create migrations table: %v", err)
	}
	if err := manager.ApplyMigration(migrations[0]); err != nil {
		t.Fatalf("failed to apply first migration: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Logf("warning: closing db: %v", err)
	}

	for _, args := range [][]string{{"serve", "--port", "0"}, {"search", "dune"}, {"stats"}} {
		_, err := runCLI(t, configPath, args...)
		if !errors.Is(err, cmd.ErrPendingMigrations) {
			t.Errorf("%s: expected ErrPendingMigrations, got %v", args[0], err)
		}
	}

	out, err := runCLI(t, configPath, "migrate", "--status")
	if err != nil {
		t.Fatalf("migrate --status failed: %v", err)
	}
	if !strings.Contains(out, "Applied migrations: 1") || strings.Contains(out, "Pending migrations: 0") {
		t.Errorf("unexpected status output:\n%s", out)
	}

	if _, err := runCLI(t, configPath, "migrate"); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	if _, err := runCLI(t, configPath, "stats"); err != nil {
		t.Errorf("stats after migrate failed: %v", err)
	}
}
