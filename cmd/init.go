package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/rubiojr/shelf/pkg/config"
	"github.com/rubiojr/shelf/pkg/storage"
	"github.com/urfave/cli/v3"
)

// InitCommand creates the init command
func InitCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Initialize configuration and the catalog database",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Overwrite an existing configuration file",
				Value: false,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return initConfig(c.String("config"), c.Bool("force"))
		},
	}
}

// initConfig writes the configuration template and creates the database
func initConfig(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration already exists at %s (use --force to overwrite)", configPath)
	}

	cfg, err := config.GetDefaultConfig()
	if err != nil {
		return fmt.Errorf("getting default config: %w", err)
	}
	if err := cfg.SaveTemplateConfig(configPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Printf("Configuration initialized at %s\n", configPath)

	if err := os.MkdirAll(cfg.StorageDir, 0755); err != nil {
		return fmt.Errorf("creating storage directory: %w", err)
	}
	store, err := storage.OpenMigrated(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	defer closeStore(store)
	fmt.Printf("Database ready at %s\n", store.Path())

	return nil
}
