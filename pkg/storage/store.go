// Package storage keeps the book catalog in SQLite and runs compiled
// predicate queries against it.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/rubiojr/shelf/pkg/catalog"
	"github.com/rubiojr/shelf/pkg/db"
	"github.com/rubiojr/shelf/pkg/log"
)

// timeLayout has a fixed width so created_at sorts correctly as text.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

var collectionName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store is a catalog database.
type Store struct {
	db     *sql.DB
	path   string
	logger *log.Logger
}

// Open opens (creating if needed) the SQLite database at dbPath.
func Open(dbPath string) (*Store, error) {
	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 30000",
		"PRAGMA cache_size = -64000", // 64MB cache
		"PRAGMA temp_store = memory",
		"PRAGMA mmap_size = 268435456", // 256MB mmap
	}

	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("applying pragma %q: %w", pragma, err)
		}
	}

	return &Store{db: conn, path: dbPath, logger: log.ForService("storage")}, nil
}

// OpenMigrated opens the database and applies pending migrations.
func OpenMigrated(dbPath string) (*Store, error) {
	s, err := Open(dbPath)
	if err != nil {
		return nil, err
	}
	if err := db.InitializeDatabase(s.db); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection for migrations
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func validCollection(name string) error {
	if !collectionName.MatchString(name) {
		return fmt.Errorf("invalid collection name %q", name)
	}
	return nil
}

// PutBooks inserts or replaces books in one transaction.
func (s *Store) PutBooks(ctx context.Context, collection string, books []catalog.Book) error {
	if len(books) == 0 {
		return nil
	}
	if err := validCollection(collection); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil {
				s.logger.Warnf("failed to rollback transaction: %v", err)
			}
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO `+collection+` (
			id, title, author, publisher, description, isbn, external_id, narrator,
			format, file_type, language, book_type, fiction_type, categories,
			published_date, published_year, file_size, cover_url, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			s.logger.Warnf("failed to close statement: %v", err)
		}
	}()

	for _, b := range books {
		categories := b.Categories
		if categories == nil {
			categories = []string{}
		}
		categoriesJSON, err := json.Marshal(categories)
		if err != nil {
			return fmt.Errorf("marshaling categories for book %s: %w", b.ID, err)
		}
		bookType := b.BookType
		if bookType == "" {
			bookType = "ebook"
		}
		createdAt := b.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}

		_, err = stmt.ExecContext(ctx,
			b.ID, b.Title, b.Author, b.Publisher, b.Description, b.ISBN, b.ExternalID, b.Narrator,
			b.Format, b.FileType, b.Language, bookType, b.FictionType, string(categoriesJSON),
			b.PublishedDate, b.PublishedYear, b.FileSize, b.CoverURL,
			createdAt.UTC().Format(timeLayout),
		)
		if err != nil {
			return fmt.Errorf("inserting book %s: %w", b.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing books: %w", err)
	}
	committed = true
	return nil
}

// Stats summarizes a collection.
type Stats struct {
	Collection string         `json:"collection"`
	TotalBooks int            `json:"total_books"`
	Ebooks     int            `json:"ebooks"`
	Audiobooks int            `json:"audiobooks"`
	Languages  map[string]int `json:"languages"`
	OldestYear int            `json:"oldest_year,omitempty"`
	NewestYear int            `json:"newest_year,omitempty"`
	NewestBook *time.Time     `json:"newest_book,omitempty"`
}

// Stats counts the books in collection.
func (s *Store) Stats(ctx context.Context, collection string) (*Stats, error) {
	if err := validCollection(collection); err != nil {
		return nil, err
	}
	stats := &Stats{Collection: collection, Languages: make(map[string]int)}

	var oldest, newest sql.NullInt64
	var newestBook sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COUNT(CASE WHEN book_type = 'ebook' THEN 1 END),
			COUNT(CASE WHEN book_type = 'audiobook' THEN 1 END),
			MIN(NULLIF(published_year, 0)),
			MAX(NULLIF(published_year, 0)),
			MAX(created_at)
		FROM `+collection).Scan(&stats.TotalBooks, &stats.Ebooks, &stats.Audiobooks, &oldest, &newest, &newestBook)
	if err != nil {
		return nil, fmt.Errorf("counting books: %w", err)
	}
	stats.OldestYear = int(oldest.Int64)
	stats.NewestYear = int(newest.Int64)
	if newestBook.Valid {
		t, err := parseTime(newestBook.String)
		if err != nil {
			return nil, fmt.Errorf("parsing newest book time: %w", err)
		}
		stats.NewestBook = &t
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT language, COUNT(*) FROM `+collection+`
		WHERE language != ''
		GROUP BY language`)
	if err != nil {
		return nil, fmt.Errorf("counting languages: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Warnf("failed to close rows: %v", err)
		}
	}()
	for rows.Next() {
		var lang string
		var n int
		if err := rows.Scan(&lang, &n); err != nil {
			return nil, fmt.Errorf("scanning language row: %w", err)
		}
		stats.Languages[lang] = n
	}

	return stats, rows.Err()
}

// parseTime reads created_at values written by this package or, for rows
// inserted by hand, SQLite's CURRENT_TIMESTAMP format.
func parseTime(v string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err == nil {
		return t, nil
	}
	return time.Parse(time.DateTime, v)
}

func (s *Store) Optimize() error {
	_, err := s.db.Exec("PRAGMA optimize")
	return err
}

func (s *Store) Analyze() error {
	_, err := s.db.Exec("ANALYZE")
	return err
}

func (s *Store) Vacuum() error {
	_, err := s.db.Exec("VACUUM")
	return err
}

func (s *Store) WALCheckpoint() error {
	_, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return err
}

// IntegrityCheck runs PRAGMA integrity_check and returns the problems it
// reports. An empty slice means the database is healthy.
func (s *Store) IntegrityCheck(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "PRAGMA integrity_check")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var problems []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, err
		}
		if line != "ok" {
			problems = append(problems, line)
		}
	}
	return problems, rows.Err()
}
