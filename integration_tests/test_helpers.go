package integration_tests

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/rubiojr/shelf/cmd"
	"github.com/urfave/cli/v3"
)

// testBooksJSONL is a small catalog export used across the integration tests.
const testBooksJSONL = `{"id":"dune","title":"Dune","author":"Frank Herbert","publisher":"Chilton Books","published_date":"1965-08-01","language":"en","categories":["Fiction","Science Fiction"]}
{"id":"emma","title":"Emma","author":"Jane Austen","publisher":"John Murray","published_date":"1815-12-23","language":"en","categories":["Fiction"]}
{"id":"sapiens","title":"Sapiens","author":"Yuval Noah Harari","publisher":"Harper","published_date":"2011-01-01","language":"en","categories":["History"]}
{"id":"quijote","title":"Don Quijote","author":"Miguel de Cervantes","publisher":"Francisco de Robles","published_date":"1605-01-16","language":"es","categories":["Fiction"]}
{"id":"sapiens-audio","title":"Sapiens","author":"Yuval Noah Harari","narrator":"Derek Perkins","publisher":"Harper","published_date":"2015-02-10","language":"en","file_type":"mp3","categories":["History"]}
`

// writeTestConfig writes a config pointing storage at tempDir and returns
// its path.
func writeTestConfig(t *testing.T, tempDir string) string {
	t.Helper()
	configPath := filepath.Join(tempDir, "config.toml")
	content := fmt.Sprintf("storage_dir = '%s'\ncollection = 'books'\n", tempDir)
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return configPath
}

// newRoot builds the CLI root the shelf binary uses.
func newRoot(configPath string) *cli.Command {
	return &cli.Command{
		Name: "shelf",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "debug"},
			&cli.StringFlag{
				Name:  "config",
				Value: configPath,
			},
		},
		Commands: []*cli.Command{
			cmd.InitCommand(),
			cmd.ImportCommand(),
			cmd.SearchCommand(),
			cmd.ServeCommand(),
			cmd.StatsCommand(),
			cmd.OptimizeCommand(),
			cmd.MigrateCommand(),
		},
	}
}

// runCLI runs the CLI with args and returns what it printed to stdout.
func runCLI(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	stdout := os.Stdout
	os.Stdout = w

	out := make(chan string)
	go func() {
		data, _ := io.ReadAll(r)
		out <- string(data)
	}()

	argv := append([]string{"shelf", "--config", configPath}, args...)
	runErr := newRoot(configPath).Run(context.Background(), argv)

	os.Stdout = stdout
	w.Close()
	return <-out, runErr
}
