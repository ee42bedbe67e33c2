// Package compiler turns filter state into a predicate.Query.
//
// Compilation never fails. Values that cannot be used (a year that is not a
// number) are left out of the predicate, and an empty predicate is a valid
// "browse everything" query.
package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rubiojr/shelf/pkg/catalog"
	"github.com/rubiojr/shelf/pkg/filter"
	"github.com/rubiojr/shelf/pkg/log"
	"github.com/rubiojr/shelf/pkg/predicate"
	"github.com/rubiojr/shelf/pkg/query"
)

// PageSize is the fixed number of items per page.
const PageSize = 20

// Override is a single-field lookup taken from a deep-link path. When set it
// replaces free-text handling as the primary clause.
type Override struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

var logger = log.ForService("compiler")

// builder produces the primary clause for one metadata field. ok is false
// when the value cannot be used.
type builder func(value string) (node predicate.Node, ok bool)

var builders = map[catalog.Field]builder{
	catalog.FieldPublisher:   containsIn(catalog.ColPublisher),
	catalog.FieldNarrator:    containsIn(catalog.ColNarrator),
	catalog.FieldAuthor:      containsIn(catalog.ColAuthor),
	catalog.FieldYear:        yearDateRange,
	catalog.FieldLanguage:    equalTo(catalog.ColLanguage),
	catalog.FieldFormat:      anyFormat,
	catalog.FieldGenre:       genre,
	catalog.FieldFictionType: equalTo(catalog.ColFictionType),
	catalog.FieldISBN:        equalTo(catalog.ColISBN),
	catalog.FieldExternalID:  equalTo(catalog.ColExternalID),
}

func containsIn(col catalog.Column) builder {
	return func(v string) (predicate.Node, bool) {
		return predicate.Contains(col, v), true
	}
}

func equalTo(col catalog.Column) builder {
	return func(v string) (predicate.Node, bool) {
		return predicate.Eq(col, v), true
	}
}

// yearDateRange matches the whole calendar year on the full-date column.
// The numeric year column is left to the year_from/year_to refinements.
func yearDateRange(v string) (predicate.Node, bool) {
	year, ok := parseYear(v)
	if !ok {
		return nil, false
	}
	return predicate.Range{
		Column: catalog.ColPublishedDate,
		From:   fmt.Sprintf("%04d-01-01", year),
		To:     fmt.Sprintf("%04d-12-31", year),
	}, true
}

func anyFormat(v string) (predicate.Node, bool) {
	return predicate.AnyOf(predicate.OpContains, v, catalog.FormatColumns...), true
}

func genre(v string) (predicate.Node, bool) {
	return predicate.Or{Terms: []predicate.Node{
		predicate.Contains(catalog.ColFictionType, v),
		predicate.Has(catalog.ColCategories, v),
	}}, true
}

// fallback searches the value across all text columns.
func fallback(v string, exact bool) predicate.Node {
	op := predicate.OpContains
	if exact {
		op = predicate.OpEq
	}
	return predicate.AnyOf(op, v, catalog.TextColumns...)
}

// fieldClause dispatches to the field's builder; unregistered fields get the
// substring fallback over the text columns.
func fieldClause(field catalog.Field, value string) (predicate.Node, bool) {
	if value == "" {
		return nil, false
	}
	if b, ok := builders[field]; ok {
		return b(value)
	}
	return fallback(value, false), true
}

func parseYear(v string) (int, bool) {
	year, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		logger.Debugf("dropping non-numeric year %q", v)
		return 0, false
	}
	return year, true
}

// Compile builds the query for one page. override may be nil. Stages are
// appended in a fixed order: primary text clause, range and equality
// refinements, categories; then sort and window.
func Compile(c filter.Criteria, override *Override, categories []string, page int) predicate.Query {
	var where predicate.And
	add := func(n predicate.Node, ok bool) {
		if ok {
			where.Terms = append(where.Terms, n)
		}
	}

	add(primary(c, override))

	if year, ok := optionalYear(c.YearFrom); ok {
		add(predicate.Range{Column: catalog.ColPublishedYear, From: year}, true)
	}
	if year, ok := optionalYear(c.YearTo); ok {
		add(predicate.Range{Column: catalog.ColPublishedYear, To: year}, true)
	}
	if c.Language != "" {
		add(predicate.Eq(catalog.ColLanguage, c.Language), true)
	}
	if c.FileType != "" {
		add(anyFormat(c.FileType))
	}
	if c.BookType != "" && c.BookType != filter.BookTypeAll {
		add(predicate.Eq(catalog.ColBookType, string(c.BookType)), true)
	}
	if c.FictionType != "" && c.FictionType != filter.FictionTypeAll {
		add(predicate.Eq(catalog.ColFictionType, c.FictionType), true)
	}

	add(categoryClause(categories))

	col, dir := catalog.SortFor(c.SortBy)
	if page < 1 {
		page = 1
	}
	return predicate.Query{
		Where:  where,
		Sort:   predicate.Sort{Column: col, Direction: dir},
		Offset: (page - 1) * PageSize,
		Limit:  PageSize,
	}
}

func primary(c filter.Criteria, override *Override) (predicate.Node, bool) {
	if override != nil {
		return fieldClause(catalog.LookupField(override.Field), override.Value)
	}
	if tok, ok := query.ParseWhole(c.Query); ok {
		return fieldClause(tok.Field, tok.Value)
	}
	if text := strings.TrimSpace(c.Query); text != "" {
		return fallback(text, c.ExactMatch), true
	}
	return nil, false
}

func optionalYear(v string) (int, bool) {
	if v == "" {
		return 0, false
	}
	return parseYear(v)
}

func categoryClause(categories []string) (predicate.Node, bool) {
	var or predicate.Or
	for _, label := range categories {
		if label == "" {
			continue
		}
		or.Terms = append(or.Terms, predicate.Has(catalog.ColCategories, label))
	}
	if len(or.Terms) == 0 {
		return nil, false
	}
	return or, true
}
