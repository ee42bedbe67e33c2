// Package search runs one-shot catalog searches for the REST API and the
// command line.
//
// # Overview
//
// A live search page keeps its filter state in a session.Controller and
// accumulates pages as the user scrolls. The REST API has no such state:
// every request carries the full set of inputs. This package rebuilds the
// filter state from those inputs with the same rules a session applies, so
// that a URL shared between the two surfaces returns the same results:
//
//   - Path metadata (a deep link such as /books/publisher/penguin-books)
//     selects a single-field override and shows publisher:"penguin books"
//     as the query text.
//   - Otherwise the q parameter becomes the free-text query, and inline
//     qualifiers it contains (year:1999, language:en, format:epub,
//     genre:"Sci-Fi") fill the matching filter fields.
//   - Explicit parameters (year_from, language, sort, ...) are applied last.
//
// # Pagination
//
// Pages hold compiler.PageSize books. Search asks the executor for one extra
// row and reports HasMore when it arrives, so clients never need an empty
// trailing request to discover the end of the result set.
//
// # Usage
//
//	service := search.NewSearchService(store, "books")
//	params, err := search.ParseSearchParams(r.URL.Query())
//	if err != nil {
//		// bad page number
//	}
//	results, err := service.Search(ctx, params)
package search
