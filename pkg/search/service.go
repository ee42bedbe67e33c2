package search

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rubiojr/shelf/pkg/catalog"
	"github.com/rubiojr/shelf/pkg/compiler"
	"github.com/rubiojr/shelf/pkg/filter"
	"github.com/rubiojr/shelf/pkg/session"
)

// Refinement is one explicit filter field taken from the request.
type Refinement struct {
	Key   filter.Key
	Value string
}

// SearchParams represents all parameters for a one-shot search.
type SearchParams struct {
	// Navigation carries either path metadata (a deep link such as
	// /publisher/penguin-books) or the free-text query parameter.
	Navigation session.Navigation

	// Refinements are applied after the query's inline qualifiers, so an
	// explicit parameter wins over a qualifier in the text.
	Refinements []Refinement

	// Categories are ORed together.
	Categories []string

	// Page is the page number (1-based). Defaults to 1.
	Page int
}

// SearchResults is one page of books plus pagination metadata.
type SearchResults struct {
	Books    []catalog.Book
	Criteria filter.Criteria
	Override *compiler.Override
	Page     int
	Limit    int
	// HasMore comes from one row of lookahead: the page is fetched with
	// PageSize+1 rows and the extra row only signals that more exist. A live
	// session instead treats a full page as "maybe more".
	HasMore bool
	// TotalPages is a conservative estimate: page+1 when more results exist.
	TotalPages int
	// Predicate is the compiled query, for debugging.
	Predicate string
}

// Service runs stateless searches: every call builds its filter state from
// scratch and compiles exactly one page.
type Service struct {
	exec       session.Executor
	collection string
}

// NewSearchService creates a search service reading from collection.
func NewSearchService(exec session.Executor, collection string) *Service {
	return &Service{exec: exec, collection: collection}
}

// Search resolves params the same way a live session would and executes a
// single page. Invalid path metadata returns session.ErrUnknownField or
// session.ErrMissingValue without querying.
func (s *Service) Search(ctx context.Context, params SearchParams) (*SearchResults, error) {
	store := filter.NewStore()
	var override *compiler.Override

	switch nav := params.Navigation; {
	case nav.HasPath():
		o, err := session.ResolvePath(nav)
		if err != nil {
			return nil, err
		}
		override = o
		if err := session.ShowPath(store, o); err != nil {
			return nil, err
		}
	case nav.Query != "":
		if err := session.SetQuery(store, nav.Query); err != nil {
			return nil, err
		}
	}

	for _, r := range params.Refinements {
		if err := store.Update(r.Key, r.Value); err != nil {
			return nil, err
		}
	}

	page := max(params.Page, 1)
	q := compiler.Compile(store.Get(), override, params.Categories, page)
	// One row of lookahead tells whether a next page exists.
	q.Limit++
	books, err := s.exec.Execute(ctx, s.collection, q)
	if err != nil {
		return nil, err
	}

	hasMore := len(books) > compiler.PageSize
	if hasMore {
		books = books[:compiler.PageSize]
	}
	totalPages := page
	if hasMore {
		totalPages = page + 1
	}

	return &SearchResults{
		Books:      books,
		Criteria:   store.Get(),
		Override:   override,
		Page:       page,
		Limit:      compiler.PageSize,
		HasMore:    hasMore,
		TotalPages: totalPages,
		Predicate:  q.String(),
	}, nil
}

// paramKeys maps request parameters to filter keys, in the order they are
// applied.
var paramKeys = []struct {
	param string
	key   filter.Key
}{
	{"year_from", filter.KeyYearFrom},
	{"year_to", filter.KeyYearTo},
	{"language", filter.KeyLanguage},
	{"format", filter.KeyFileType},
	{"type", filter.KeyBookType},
	{"fiction_type", filter.KeyFictionType},
	{"exact", filter.KeyExactMatch},
	{"sort", filter.KeySortBy},
}

// ParseSearchParams parses HTTP query parameters into SearchParams.
//
// Supported parameters:
//   - q: free-text query, may contain inline qualifiers (year:1999)
//   - year_from, year_to, language, format, type, fiction_type, exact, sort
//   - category: selected category (repeatable)
//   - page: page number (positive integer, defaults to 1)
//
// Filter values are taken as given; values the compiler cannot use are
// ignored there. A page that is not a positive integer is an error.
func ParseSearchParams(queryParams map[string][]string) (SearchParams, error) {
	params := SearchParams{Page: 1}

	if q := queryParams["q"]; len(q) > 0 {
		params.Navigation = session.NewQueryNavigation(q[0])
	}

	for _, pk := range paramKeys {
		if v := queryParams[pk.param]; len(v) > 0 && v[0] != "" {
			params.Refinements = append(params.Refinements, Refinement{Key: pk.key, Value: v[0]})
		}
	}

	for _, c := range queryParams["category"] {
		if c != "" {
			params.Categories = append(params.Categories, c)
		}
	}

	if pageStr := queryParams["page"]; len(pageStr) > 0 && pageStr[0] != "" {
		parsed, err := strconv.Atoi(pageStr[0])
		if err != nil || parsed < 1 {
			return params, fmt.Errorf("invalid page %q", pageStr[0])
		}
		params.Page = parsed
	}

	return params, nil
}
