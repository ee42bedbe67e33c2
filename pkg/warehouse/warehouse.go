// Package warehouse runs background catalog maintenance: importing files
// dropped into a directory and optimizing the database on a schedule.
package warehouse

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rubiojr/shelf/pkg/log"
)

// Subdirectories of ImportDir that processed files are moved to.
const (
	importedDir = "imported"
	failedDir   = "failed"
)

var importSuffixes = []string{".jsonl", ".ndjson", ".jsonl.gz", ".jsonl.zst"}

type Config struct {
	Collection string
	// ImportDir is scanned for JSON Lines files. Empty disables imports.
	ImportDir        string
	ImportInterval   time.Duration
	OptimizeInterval time.Duration
}

// Catalog is the storage the warehouse maintains.
type Catalog interface {
	ImportFile(ctx context.Context, collection, path string) (int, error)
	Optimize() error
	WALCheckpoint() error
}

type Warehouse struct {
	config    Config
	catalog   Catalog
	logger    *log.Logger
	ctxCancel context.CancelFunc
	mu        sync.Mutex
	importMu  sync.Mutex
	wg        sync.WaitGroup
	running   bool
}

func NewWarehouse(config Config, catalog Catalog) *Warehouse {
	return &Warehouse{
		config:  config,
		catalog: catalog,
		logger:  log.ForService("warehouse"),
	}
}

// Start launches the import and optimize schedulers. A zero interval
// disables the matching scheduler. The first import runs immediately.
func (w *Warehouse) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("warehouse is already running")
	}

	if w.config.ImportDir != "" {
		if err := w.ensureDirs(); err != nil {
			return err
		}
	}

	ctx, w.ctxCancel = context.WithCancel(ctx)
	w.running = true

	if w.config.ImportDir != "" && w.config.ImportInterval > 0 {
		w.logger.Infof("importing from %s every %v", w.config.ImportDir, w.config.ImportInterval)
		w.schedule(ctx, w.config.ImportInterval, true, func(ctx context.Context) {
			if _, err := w.ImportOnce(ctx); err != nil {
				w.logger.Warnf("scheduled import: %v", err)
			}
		})
	}

	if w.config.OptimizeInterval > 0 {
		w.schedule(ctx, w.config.OptimizeInterval, false, func(ctx context.Context) {
			if err := w.OptimizeOnce(); err != nil {
				w.logger.Warnf("database optimization failed: %v", err)
			}
		})
	}

	w.logger.Infof("warehouse started, optimize interval: %v", w.config.OptimizeInterval)
	return nil
}

func (w *Warehouse) schedule(ctx context.Context, interval time.Duration, runNow bool, job func(context.Context)) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		if runNow {
			job(ctx)
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				job(ctx)
			}
		}
	}()
}

// Stop cancels the schedulers and waits for a running job to finish.
func (w *Warehouse) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	w.logger.Infof("stopping warehouse...")
	w.ctxCancel()
	w.wg.Wait()
	w.running = false
	w.logger.Infof("warehouse stopped")
}

func (w *Warehouse) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// ImportOnce imports every pending file in ImportDir, oldest name first.
// Imported files move to imported/, files that fail move to failed/ and
// the remaining files are still processed. It returns the number of books
// stored and the joined per-file errors.
func (w *Warehouse) ImportOnce(ctx context.Context) (int, error) {
	if w.config.ImportDir == "" {
		return 0, nil
	}
	w.importMu.Lock()
	defer w.importMu.Unlock()

	if err := w.ensureDirs(); err != nil {
		return 0, err
	}
	files, err := pendingFiles(w.config.ImportDir)
	if err != nil {
		return 0, err
	}

	total := 0
	var errs []error
	for _, name := range files {
		if ctx.Err() != nil {
			return total, errors.Join(append(errs, ctx.Err())...)
		}

		src := filepath.Join(w.config.ImportDir, name)
		n, err := w.catalog.ImportFile(ctx, w.config.Collection, src)
		total += n

		dest := importedDir
		if err != nil {
			dest = failedDir
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			w.logger.Warnf("import of %s failed after %d books: %v", name, n, err)
		} else {
			w.logger.Infof("imported %d books from %s", n, name)
		}
		if err := os.Rename(src, filepath.Join(w.config.ImportDir, dest, name)); err != nil {
			errs = append(errs, fmt.Errorf("moving %s: %w", name, err))
		}
	}

	return total, errors.Join(errs...)
}

// OptimizeOnce runs PRAGMA optimize and truncates the WAL.
func (w *Warehouse) OptimizeOnce() error {
	w.logger.Debugf("running database optimization")
	if err := w.catalog.Optimize(); err != nil {
		return fmt.Errorf("optimize: %w", err)
	}
	if err := w.catalog.WALCheckpoint(); err != nil {
		return fmt.Errorf("wal checkpoint: %w", err)
	}
	return nil
}

func (w *Warehouse) ensureDirs() error {
	for _, dir := range []string{w.config.ImportDir, filepath.Join(w.config.ImportDir, importedDir), filepath.Join(w.config.ImportDir, failedDir)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating import directory: %w", err)
		}
	}
	return nil
}

func pendingFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading import directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if importable(e.Name()) {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

func importable(name string) bool {
	name = strings.ToLower(name)
	for _, suffix := range importSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}
