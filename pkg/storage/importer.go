package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/rubiojr/shelf/pkg/catalog"
)

const importBatchSize = 500

// ImportFile loads books from a JSON Lines file into collection. Files
// ending in .gz or .zst are decompressed on the fly. It returns the number
// of books stored.
func (s *Store) ImportFile(ctx context.Context, collection, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		gz, err := gzip.NewReader(f)
		if err != nil {
			return 0, fmt.Errorf("reading gzip header: %w", err)
		}
		defer gz.Close()
		r = gz
	case ".zst":
		zr, err := zstd.NewReader(f)
		if err != nil {
			return 0, fmt.Errorf("creating zstd reader: %w", err)
		}
		defer zr.Close()
		r = zr
	}

	return s.Import(ctx, collection, r)
}

// Import reads JSON Lines from r. Blank lines are skipped; a malformed line
// aborts the import, keeping the batches already committed.
func (s *Store) Import(ctx context.Context, collection string, r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	total := 0
	batch := make([]catalog.Book, 0, importBatchSize)
	flush := func() error {
		if err := s.PutBooks(ctx, collection, batch); err != nil {
			return err
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var b catalog.Book
		if err := json.Unmarshal([]byte(raw), &b); err != nil {
			return total, fmt.Errorf("line %d: %w", line, err)
		}
		normalize(&b)
		batch = append(batch, b)
		if len(batch) == importBatchSize {
			if err := flush(); err != nil {
				return total, err
			}
			s.logger.Debugf("imported %d books", total)
		}
	}
	if err := scanner.Err(); err != nil {
		return total, fmt.Errorf("reading line %d: %w", line+1, err)
	}
	if err := flush(); err != nil {
		return total, err
	}
	return total, nil
}

// normalize fills fields an export may leave out.
func normalize(b *catalog.Book) {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if b.PublishedYear == 0 && len(b.PublishedDate) >= 4 {
		if year, err := strconv.Atoi(b.PublishedDate[:4]); err == nil {
			b.PublishedYear = year
		}
	}
	if b.BookType == "" {
		b.BookType = "ebook"
		if b.Narrator != "" {
			b.BookType = "audiobook"
		}
	}
}
