package catalog

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Field identifies a metadata field that can appear in a `field:value`
// qualifier or in a deep-link path.
type Field int

const (
	FieldUnknown Field = iota
	FieldPublisher
	FieldNarrator
	FieldYear
	FieldLanguage
	FieldFormat
	FieldGenre
	FieldAuthor
	FieldFictionType
	FieldISBN
	FieldExternalID
)

var fieldNames = map[string]Field{
	"publisher":   FieldPublisher,
	"narrator":    FieldNarrator,
	"year":        FieldYear,
	"language":    FieldLanguage,
	"format":      FieldFormat,
	"genre":       FieldGenre,
	"category":    FieldGenre,
	"author":      FieldAuthor,
	"fictiontype": FieldFictionType,
	"isbn":        FieldISBN,
	"external_id": FieldExternalID,
}

var canonicalNames = map[Field]string{
	FieldPublisher:   "publisher",
	FieldNarrator:    "narrator",
	FieldYear:        "year",
	FieldLanguage:    "language",
	FieldFormat:      "format",
	FieldGenre:       "genre",
	FieldAuthor:      "author",
	FieldFictionType: "fictiontype",
	FieldISBN:        "isbn",
	FieldExternalID:  "external_id",
}

// Only these are picked out of free text; the rest are understood when the
// whole query is a single qualifier or when they come from a path.
var inlineFields = map[Field]bool{
	FieldPublisher: true,
	FieldYear:      true,
	FieldLanguage:  true,
	FieldFormat:    true,
	FieldGenre:     true,
	FieldNarrator:  true,
}

// FoldName normalizes a field name for case-insensitive comparison.
// Casers carry state, so each call gets its own.
func FoldName(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// LookupField resolves a field name, ignoring case. Unrecognized names
// return FieldUnknown.
func LookupField(name string) Field {
	return fieldNames[FoldName(name)]
}

// String returns the canonical field name, or "unknown".
func (f Field) String() string {
	if name, ok := canonicalNames[f]; ok {
		return name
	}
	return "unknown"
}

// Known reports whether f is a registered field.
func (f Field) Known() bool {
	return f != FieldUnknown
}

// Inline reports whether the free-text token parser extracts this field.
func (f Field) Inline() bool {
	return inlineFields[f]
}

// Label returns a display label for a field name, e.g. "external_id" ->
// "External Id".
func Label(name string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(name, "_", " "))
}
