package session

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	// ErrUnknownField is returned for deep links on a field the registry
	// does not know.
	ErrUnknownField = errors.New("unknown metadata field")
	// ErrMissingValue is returned for deep links without a value.
	ErrMissingValue = errors.New("missing metadata value")
)

// Navigation is what a URL carries into a search page: either a metadata
// path (Field and Value), a free-text query parameter, or nothing at all.
// Path metadata wins when both are present.
type Navigation struct {
	Field string `json:"field,omitempty"`
	Value string `json:"value,omitempty"`
	Query string `json:"query,omitempty"`
}

// NewPathNavigation builds a metadata navigation from raw path segments.
// The value is URL-decoded and hyphens become spaces, so
// "penguin-random-house" looks up "penguin random house".
func NewPathNavigation(field, rawValue string) (Navigation, error) {
	value, err := url.PathUnescape(rawValue)
	if err != nil {
		return Navigation{}, fmt.Errorf("decoding %s value %q: %w", field, rawValue, err)
	}
	return NewSlugNavigation(field, value), nil
}

// NewSlugNavigation is NewPathNavigation for a value the router already
// decoded.
func NewSlugNavigation(field, slug string) Navigation {
	return Navigation{
		Field: strings.TrimSpace(field),
		Value: strings.TrimSpace(strings.ReplaceAll(slug, "-", " ")),
	}
}

// NewQueryNavigation builds a navigation carrying only a query parameter.
func NewQueryNavigation(q string) Navigation {
	return Navigation{Query: q}
}

// HasPath reports whether the navigation carries path metadata.
func (n Navigation) HasPath() bool {
	return n.Field != "" || n.Value != ""
}

func (n Navigation) String() string {
	switch {
	case n.HasPath():
		return fmt.Sprintf("path %s=%q", n.Field, n.Value)
	case n.Query != "":
		return fmt.Sprintf("query %q", n.Query)
	default:
		return "defaults"
	}
}
