package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/rubiojr/shelf/pkg/compiler"
	"github.com/rubiojr/shelf/pkg/filter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleJSONL = `{"id":"b1","title":"Dune","author":"Frank Herbert","published_date":"1965-08-01","categories":["Fiction"]}

{"title":"Sapiens","narrator":"Derek Perkins","published_year":2011}
`

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func gzipped(t *testing.T, data string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write([]byte(data))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func zstded(t *testing.T, data string) []byte {
	t.Helper()
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	defer enc.Close()
	return enc.EncodeAll([]byte(data), nil)
}

func TestImportFile(t *testing.T) {
	tests := []struct {
		name string
		file string
		data func(t *testing.T) []byte
	}{
		{"plain", "books.jsonl", func(t *testing.T) []byte { return []byte(sampleJSONL) }},
		{"gzip", "books.jsonl.gz", func(t *testing.T) []byte { return gzipped(t, sampleJSONL) }},
		{"zstd", "books.jsonl.zst", func(t *testing.T) []byte { return zstded(t, sampleJSONL) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			n, err := s.ImportFile(ctx, "books", writeFile(t, tt.file, tt.data(t)))
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			books, err := s.Execute(ctx, "books", compiler.Compile(filter.Defaults(), nil, nil, 1))
			require.NoError(t, err)
			require.Len(t, books, 2)

			byTitle := map[string]int{}
			for i, b := range books {
				byTitle[b.Title] = i
			}
			dune := books[byTitle["Dune"]]
			assert.Equal(t, "b1", dune.ID)
			assert.Equal(t, 1965, dune.PublishedYear)
			assert.Equal(t, "ebook", dune.BookType)
			assert.Equal(t, []string{"Fiction"}, dune.Categories)

			sapiens := books[byTitle["Sapiens"]]
			_, err = uuid.Parse(sapiens.ID)
			assert.NoError(t, err, "missing ids are generated")
			assert.Equal(t, "audiobook", sapiens.BookType)
			assert.Equal(t, 2011, sapiens.PublishedYear)
		})
	}
}

func TestImportBatches(t *testing.T) {
	s := newStore(t)

	var sb strings.Builder
	for i := 0; i < importBatchSize+7; i++ {
		sb.WriteString(`{"title":"Book"}` + "\n")
	}
	n, err := s.Import(context.Background(), "books", strings.NewReader(sb.String()))
	require.NoError(t, err)
	assert.Equal(t, importBatchSize+7, n)

	stats, err := s.Stats(context.Background(), "books")
	require.NoError(t, err)
	assert.Equal(t, importBatchSize+7, stats.TotalBooks)
}

func TestImportMalformedLine(t *testing.T) {
	s := newStore(t)

	n, err := s.Import(context.Background(), "books", strings.NewReader("{\"id\":\"a\"}\nnot json\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
	assert.Zero(t, n)
}

func TestImportMissingFile(t *testing.T) {
	s := newStore(t)
	_, err := s.ImportFile(context.Background(), "books", filepath.Join(t.TempDir(), "nope.jsonl"))
	assert.Error(t, err)
}
