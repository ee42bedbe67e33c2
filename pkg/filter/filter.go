// Package filter holds the canonical search filter criteria and the store
// that owns them.
//
// The store performs no validation: whatever the filter panel or the URL
// sends is kept as-is, and the compiler decides what is usable.
package filter

import (
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/rubiojr/shelf/pkg/catalog"
)

// BookType restricts results to a kind of book. BookTypeAll is the
// "no constraint" sentinel.
type BookType string

const (
	BookTypeAll       BookType = "all"
	BookTypeEbook     BookType = "ebook"
	BookTypeAudiobook BookType = "audiobook"
)

// FictionTypeAll is the "no constraint" sentinel for Criteria.FictionType.
const FictionTypeAll = "all"

// Criteria is the full filter state. Empty strings mean unset.
type Criteria struct {
	Query       string          `json:"query"`
	YearFrom    string          `json:"year_from,omitempty"`
	YearTo      string          `json:"year_to,omitempty"`
	Language    string          `json:"language,omitempty"`
	FileType    string          `json:"file_type,omitempty"`
	BookType    BookType        `json:"book_type"`
	FictionType string          `json:"fiction_type,omitempty"`
	ExactMatch  bool            `json:"exact_match"`
	SortBy      catalog.SortKey `json:"sort_by"`
}

// Defaults returns the criteria a session starts with.
func Defaults() Criteria {
	return Criteria{
		BookType: BookTypeAll,
		SortBy:   catalog.SortPopularity,
	}
}

// Key names a single Criteria field.
type Key string

const (
	KeyQuery       Key = "query"
	KeyYearFrom    Key = "year_from"
	KeyYearTo      Key = "year_to"
	KeyLanguage    Key = "language"
	KeyFileType    Key = "file_type"
	KeyBookType    Key = "book_type"
	KeyFictionType Key = "fiction_type"
	KeyExactMatch  Key = "exact_match"
	KeySortBy      Key = "sort_by"
)

// Keys lists every updatable key.
var Keys = []Key{
	KeyQuery, KeyYearFrom, KeyYearTo, KeyLanguage, KeyFileType,
	KeyBookType, KeyFictionType, KeyExactMatch, KeySortBy,
}

// ErrUnknownKey is returned by Update for keys that are not Criteria fields.
var ErrUnknownKey = errors.New("unknown filter key")

// With returns a copy of c with the field named by key replaced by value.
func (c Criteria) With(key Key, value string) (Criteria, error) {
	switch key {
	case KeyQuery:
		c.Query = value
	case KeyYearFrom:
		c.YearFrom = value
	case KeyYearTo:
		c.YearTo = value
	case KeyLanguage:
		c.Language = value
	case KeyFileType:
		c.FileType = value
	case KeyBookType:
		c.BookType = BookType(value)
	case KeyFictionType:
		c.FictionType = value
	case KeyExactMatch:
		// Anything that is not a recognizable true is false.
		exact, _ := strconv.ParseBool(value)
		c.ExactMatch = exact
	case KeySortBy:
		c.SortBy = catalog.SortKey(value)
	default:
		return c, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	return c, nil
}

// Store owns the current Criteria. Every change swaps in a whole new
// snapshot, so readers on any goroutine see either the old or the new
// value and never a half-applied reset.
type Store struct {
	current atomic.Pointer[Criteria]
}

// NewStore returns a store holding Defaults().
func NewStore() *Store {
	s := &Store{}
	s.Reset()
	return s
}

// Get returns the current criteria.
func (s *Store) Get() Criteria {
	return *s.current.Load()
}

// Update replaces exactly one field and keeps all others.
func (s *Store) Update(key Key, value string) error {
	for {
		old := s.current.Load()
		next, err := old.With(key, value)
		if err != nil {
			return err
		}
		if s.current.CompareAndSwap(old, &next) {
			return nil
		}
	}
}

// Reset restores the defaults in a single swap.
func (s *Store) Reset() {
	d := Defaults()
	s.current.Store(&d)
}
