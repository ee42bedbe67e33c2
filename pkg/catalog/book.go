// Package catalog holds the catalog item model and the static registries
// used to query it: queryable columns, sort keys and metadata fields.
package catalog

import "time"

// Book is a single catalog item as returned by the query executor.
type Book struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	Publisher     string    `json:"publisher,omitempty"`
	Description   string    `json:"description,omitempty"`
	ISBN          string    `json:"isbn,omitempty"`
	ExternalID    string    `json:"external_id,omitempty"`
	Narrator      string    `json:"narrator,omitempty"`
	Format        string    `json:"format,omitempty"`
	FileType      string    `json:"file_type,omitempty"`
	Language      string    `json:"language,omitempty"`
	BookType      string    `json:"book_type,omitempty"`
	FictionType   string    `json:"fiction_type,omitempty"`
	Categories    []string  `json:"categories,omitempty"`
	PublishedDate string    `json:"published_date,omitempty"`
	PublishedYear int       `json:"published_year,omitempty"`
	FileSize      int64     `json:"file_size,omitempty"`
	CoverURL      string    `json:"cover_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
