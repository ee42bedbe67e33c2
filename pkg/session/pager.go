package session

import "github.com/rubiojr/shelf/pkg/catalog"

// Pager accumulates result pages. The first page replaces whatever was
// there; later pages append.
type Pager struct {
	size    int
	items   []catalog.Book
	page    int
	hasMore bool
	fetched bool
}

// NewPager returns an empty pager for pages of the given size.
func NewPager(size int) *Pager {
	p := &Pager{size: size}
	p.Reset()
	return p
}

// Reset clears the accumulated items and expects page 1 next.
func (p *Pager) Reset() {
	p.items = []catalog.Book{}
	p.page = 1
	p.hasMore = true
	p.fetched = false
}

// OnPage folds a fetched page into the accumulated list.
//
// Page 1 always replaces, even with no rows: an empty first page is the
// "no results" state. A later page with no rows leaves the list alone.
// Either way a page shorter than the page size ends the result set.
func (p *Pager) OnPage(page int, rows []catalog.Book) {
	switch {
	case page <= 1:
		p.items = append([]catalog.Book{}, rows...)
	case len(rows) > 0:
		p.items = append(p.items, rows...)
	}
	p.page = max(page, 1)
	p.hasMore = len(rows) == p.size
	p.fetched = true
}

// Items returns a copy of the accumulated items.
func (p *Pager) Items() []catalog.Book {
	return append([]catalog.Book{}, p.items...)
}

// Len is the number of accumulated items.
func (p *Pager) Len() int { return len(p.items) }

// Page is the last page folded in, or 1 after a reset.
func (p *Pager) Page() int { return p.page }

// HasMore reports whether another page may exist.
func (p *Pager) HasMore() bool { return p.hasMore }

// Fetched reports whether any page has been folded in since the last reset,
// which tells "no results" apart from "not loaded yet".
func (p *Pager) Fetched() bool { return p.fetched }
