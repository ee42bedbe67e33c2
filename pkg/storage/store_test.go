package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rubiojr/shelf/pkg/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(n int) time.Time {
	return time.Date(2024, 1, n, 12, 0, 0, 0, time.UTC)
}

func fixtures() []catalog.Book {
	return []catalog.Book{
		{
			ID: "b1", Title: "Dune", Author: "Frank Herbert", Publisher: "Chilton Books",
			PublishedDate: "1965-08-01", PublishedYear: 1965, Language: "en", FileType: "epub",
			FictionType: "Science Fiction", Categories: []string{"Fiction", "Classics"},
			FileSize: 300, CreatedAt: day(1),
		},
		{
			ID: "b2", Title: "The Hobbit", Author: "J. R. R. Tolkien", Publisher: "Allen & Unwin",
			PublishedDate: "1937-09-21", PublishedYear: 1937, Language: "en", Format: "PDF",
			FictionType: "Fantasy", Categories: []string{"Fiction"},
			FileSize: 100, CreatedAt: day(2),
		},
		{
			ID: "b3", Title: "Sapiens", Author: "Yuval Noah Harari", Publisher: "Harper",
			Narrator: "Derek Perkins", BookType: "audiobook",
			PublishedDate: "2011-01-01", PublishedYear: 2011, Language: "en", FileType: "epub",
			FictionType: "Nonfiction", Categories: []string{"History"},
			FileSize: 500, CreatedAt: day(3),
		},
		{
			ID: "b4", Title: "Cien años de soledad", Author: "Gabriel García Márquez", Publisher: "Sudamericana",
			PublishedDate: "1967-05-30", PublishedYear: 1967, Language: "es", FileType: "epub",
			FictionType: "Literary Fiction", Categories: []string{"Fiction"},
			FileSize: 200, CreatedAt: day(4),
		},
		{
			ID: "b5", Title: "100% Go", Author: "Gopher", Publisher: "Go_Press",
			PublishedDate: "2020-03-03", PublishedYear: 2020, Language: "en", FileType: "mobi",
			FileSize: 50, CreatedAt: day(5),
		},
	}
}

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMigrated(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seededStore(t *testing.T) *Store {
	t.Helper()
	s := newStore(t)
	require.NoError(t, s.PutBooks(context.Background(), "books", fixtures()))
	return s
}

func TestPutBooksReplaces(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()

	updated := fixtures()[0]
	updated.Title = "Dune (Deluxe Edition)"
	require.NoError(t, s.PutBooks(ctx, "books", []catalog.Book{updated}))

	stats, err := s.Stats(ctx, "books")
	require.NoError(t, err)
	assert.Equal(t, 5, stats.TotalBooks)

	var title string
	require.NoError(t, s.DB().QueryRow(`SELECT title FROM books WHERE id = 'b1'`).Scan(&title))
	assert.Equal(t, "Dune (Deluxe Edition)", title)
}

func TestPutBooksDefaults(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutBooks(ctx, "books", []catalog.Book{{ID: "x", Title: "Untitled"}}))

	var bookType, categories string
	require.NoError(t, s.DB().QueryRow(`SELECT book_type, categories FROM books WHERE id = 'x'`).Scan(&bookType, &categories))
	assert.Equal(t, "ebook", bookType)
	assert.Equal(t, "[]", categories)
}

func TestPutBooksRejectsBadCollection(t *testing.T) {
	s := newStore(t)
	err := s.PutBooks(context.Background(), "books; DROP TABLE books", fixtures())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid collection name")
}

func TestStats(t *testing.T) {
	s := seededStore(t)

	stats, err := s.Stats(context.Background(), "books")
	require.NoError(t, err)
	assert.Equal(t, "books", stats.Collection)
	assert.Equal(t, 5, stats.TotalBooks)
	assert.Equal(t, 4, stats.Ebooks)
	assert.Equal(t, 1, stats.Audiobooks)
	assert.Equal(t, map[string]int{"en": 4, "es": 1}, stats.Languages)
	assert.Equal(t, 1937, stats.OldestYear)
	assert.Equal(t, 2020, stats.NewestYear)
	require.NotNil(t, stats.NewestBook)
	assert.True(t, day(5).Equal(*stats.NewestBook))
}

func TestStatsEmpty(t *testing.T) {
	s := newStore(t)

	stats, err := s.Stats(context.Background(), "books")
	require.NoError(t, err)
	assert.Zero(t, stats.TotalBooks)
	assert.Zero(t, stats.OldestYear)
	assert.Nil(t, stats.NewestBook)
	assert.Empty(t, stats.Languages)
}

func TestMaintenance(t *testing.T) {
	s := seededStore(t)
	assert.NoError(t, s.Optimize())
	assert.NoError(t, s.Analyze())
	assert.NoError(t, s.WALCheckpoint())
	assert.NoError(t, s.Vacuum())

	problems, err := s.IntegrityCheck(context.Background())
	require.NoError(t, err)
	assert.Empty(t, problems)
}
