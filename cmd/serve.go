package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rubiojr/shelf/pkg/api"
	"github.com/rubiojr/shelf/pkg/config"
	"github.com/rubiojr/shelf/pkg/warehouse"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

// ServeCommand creates the serve command
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the search API server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Host to bind to (overrides the config file)",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Port to listen on (overrides the config file)",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if c.IsSet("host") {
				cfg.Server.Host = c.String("host")
			}
			if c.IsSet("port") {
				cfg.Server.Port = c.Int("port")
			}
			return serve(ctx, c.String("config"), cfg, c.Bool("debug"))
		},
	}
}

// serve runs the API server and the warehouse until SIGINT or SIGTERM,
// reloading logging settings whenever the config file changes or SIGHUP
// arrives.
func serve(ctx context.Context, configPath string, cfg *config.Config, debug bool) error {
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(store)

	apiServer := api.NewServer(store, cfg.Collection, api.SessionLimits{
		Rate:        cfg.Session.RateLimit,
		Burst:       cfg.Session.Burst,
		IdleTimeout: cfg.Session.IdleTimeout.Duration,
	})
	mux := http.NewServeMux()
	apiServer.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           api.CorsMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	wh := warehouse.NewWarehouse(warehouse.Config{
		Collection:       cfg.Collection,
		ImportDir:        cfg.Warehouse.ImportDir,
		ImportInterval:   cfg.Warehouse.ImportInterval.Duration,
		OptimizeInterval: cfg.Warehouse.OptimizeInterval.Duration,
	}, store)
	if err := wh.Start(gctx); err != nil {
		return fmt.Errorf("starting warehouse: %w", err)
	}

	g.Go(func() error {
		log.Printf("Serving %s (collection %s) on http://%s", store.Path(), cfg.Collection, server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		wh.Stop()
		return err
	})

	g.Go(func() error {
		return watchConfig(gctx, configPath, func(newCfg *config.Config) {
			applyLogging(newCfg, debug)
			if newCfg.Addr() != cfg.Addr() || newCfg.DBPath() != cfg.DBPath() || newCfg.Collection != cfg.Collection {
				log.Printf("Warning: server, database and collection changes take effect after a restart")
			}
		})
	})

	return g.Wait()
}

// watchConfig calls onChange with the freshly loaded config every time the
// file at configPath changes or the process receives SIGHUP. Invalid
// configs are logged and skipped. It returns when ctx is done.
func watchConfig(ctx context.Context, configPath string, onChange func(*config.Config)) error {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	reload := func(reason string) {
		newCfg, err := config.LoadConfig(configPath)
		if err != nil {
			log.Printf("Failed to reload configuration (%s): %v", reason, err)
			return
		}
		onChange(newCfg)
		log.Printf("Configuration reloaded (%s)", reason)
	}

	var events <-chan fsnotify.Event
	var errs <-chan error
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("Warning: failed to create config file watcher: %v", err)
	} else {
		defer func() {
			if err := watcher.Close(); err != nil {
				log.Printf("Warning: failed to close config file watcher: %v", err)
			}
		}()
		if err := watcher.Add(configPath); err != nil {
			log.Printf("Warning: failed to watch config file %s: %v", configPath, err)
		} else {
			log.Printf("Watching config file for changes: %s", configPath)
		}
		events, errs = watcher.Events, watcher.Errors
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-hup:
			reload("SIGHUP")
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			// Editors often replace the file instead of writing it in place.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			if event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				time.Sleep(200 * time.Millisecond)
				if _, err := os.Stat(configPath); os.IsNotExist(err) {
					log.Printf("Config file was removed and not replaced, skipping reload")
					continue
				}
				if err := watcher.Add(configPath); err != nil {
					log.Printf("Warning: failed to re-add config file to watcher after rename/remove: %v", err)
				}
			} else {
				time.Sleep(100 * time.Millisecond)
			}
			reload(event.Op.String())
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			log.Printf("Config file watcher error: %v", err)
		}
	}
}
