// Package session reconciles the inputs of a search page (path metadata, a
// query parameter and live filter edits) into one filter state, issues the
// resulting fetches and accumulates their pages.
//
// A Controller belongs to a single consumer goroutine. Fetches run
// concurrently and report back through Completions; the consumer hands each
// one to Apply. Every fetch is stamped with a generation number and a
// completion whose generation is no longer current is discarded, so a slow
// response can never overwrite a newer one.
package session

import (
	"context"
	"slices"
	"strings"

	"github.com/rubiojr/shelf/pkg/catalog"
	"github.com/rubiojr/shelf/pkg/compiler"
	"github.com/rubiojr/shelf/pkg/filter"
	"github.com/rubiojr/shelf/pkg/log"
	"github.com/rubiojr/shelf/pkg/predicate"
)

// Executor runs a compiled query against a named collection.
type Executor interface {
	Execute(ctx context.Context, collection string, q predicate.Query) ([]catalog.Book, error)
}

// State is the fetch state of a controller.
type State int

const (
	StateIdle State = iota
	StateFetching
	StateSuccess
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateSuccess:
		return "success"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Completion is the outcome of one fetch.
type Completion struct {
	Generation uint64
	Page       int
	Rows       []catalog.Book
	Err        error
}

// Controller is the search session state machine.
type Controller struct {
	logger     *log.Logger
	store      *filter.Store
	exec       Executor
	collection string

	pager      *Pager
	override   *compiler.Override
	categories []string
	// stale is set while the items on screen belong to criteria that have
	// since changed and page 1 of the new criteria has not arrived.
	stale bool

	generation uint64
	state      State
	err        string

	completions chan Completion
	quit        chan struct{}
}

// New returns an idle controller reading and writing criteria in store.
func New(store *filter.Store, exec Executor, collection string) *Controller {
	return &Controller{
		logger:      log.ForService("session"),
		store:       store,
		exec:        exec,
		collection:  collection,
		pager:       NewPager(compiler.PageSize),
		completions: make(chan Completion, 8),
		quit:        make(chan struct{}),
	}
}

// Close releases fetch goroutines still waiting to report. The controller
// must not be used afterwards.
func (c *Controller) Close() {
	close(c.quit)
}

// Completions delivers fetch outcomes, current or stale, in arrival order.
func (c *Controller) Completions() <-chan Completion {
	return c.completions
}

// Store returns the filter store the controller writes to.
func (c *Controller) Store() *filter.Store {
	return c.store
}

// Generation is the stamp of the most recent transition.
func (c *Controller) Generation() uint64 {
	return c.generation
}

// State returns the current fetch state.
func (c *Controller) State() State {
	return c.state
}

// Navigate applies a new URL to the session.
//
// Path metadata resets the results, shows a synthetic `field:"value"` query
// and compiles from the override, which then sticks for every later edit
// until the next navigation. A bare query parameter replaces the free
// text. A navigation with neither resets the filters. Each case issues
// exactly one fetch; invalid path metadata issues none.
func (c *Controller) Navigate(ctx context.Context, nav Navigation) error {
	c.logger.Debugf("navigate: %s", nav)

	switch {
	case nav.HasPath():
		override, err := ResolvePath(nav)
		if err != nil {
			return c.reject(err)
		}
		c.override = override
		if err := ShowPath(c.store, override); err != nil {
			return err
		}
		c.pager.Reset()
	case nav.Query != "":
		c.override = nil
		if err := SetQuery(c.store, nav.Query); err != nil {
			return err
		}
	default:
		c.override = nil
		c.store.Reset()
	}

	c.refetch(ctx)
	return nil
}

// SetFilter changes one filter field and refetches from page 1. Free-text
// changes also apply any inline qualifiers they contain.
func (c *Controller) SetFilter(ctx context.Context, key filter.Key, value string) error {
	var err error
	if key == filter.KeyQuery {
		err = SetQuery(c.store, value)
	} else {
		err = c.store.Update(key, value)
	}
	if err != nil {
		c.err = err.Error()
		return err
	}
	c.refetch(ctx)
	return nil
}

// ResetFilters restores the default criteria, clears the selected
// categories and refetches. An active path override stays in place.
func (c *Controller) ResetFilters(ctx context.Context) {
	c.store.Reset()
	c.categories = nil
	c.refetch(ctx)
}

// ToggleCategory adds label to the selected categories, or removes it if
// already selected, and refetches.
func (c *Controller) ToggleCategory(ctx context.Context, label string) {
	label = strings.TrimSpace(label)
	if label == "" {
		return
	}
	if i := slices.Index(c.categories, label); i >= 0 {
		c.categories = slices.Delete(slices.Clone(c.categories), i, i+1)
	} else {
		c.categories = append(slices.Clone(c.categories), label)
	}
	c.refetch(ctx)
}

// Categories returns the selected categories in selection order.
func (c *Controller) Categories() []string {
	return slices.Clone(c.categories)
}

// LoadMore fetches the next page. It does nothing, and returns false, while
// a fetch is in flight, before the first page arrived, or when the result
// set is exhausted. After a failed refetch it retries page 1 of the current
// criteria instead.
func (c *Controller) LoadMore(ctx context.Context) bool {
	if c.state == StateFetching {
		return false
	}
	if c.stale {
		c.fetch(ctx, 1)
		return true
	}
	if !c.pager.Fetched() || !c.pager.HasMore() {
		return false
	}
	c.fetch(ctx, c.pager.Page()+1)
	return true
}

// Apply folds a completion into the session. It returns false for stale
// completions, which are dropped without touching any state.
func (c *Controller) Apply(done Completion) bool {
	if done.Generation != c.generation {
		c.logger.Debugf("discarding stale page %d (gen %d, current %d)", done.Page, done.Generation, c.generation)
		return false
	}
	if done.Err != nil {
		// Results already on screen stay there.
		c.state = StateFailed
		c.err = done.Err.Error()
		c.logger.Warnf("fetch of page %d failed: %v", done.Page, done.Err)
		return true
	}
	c.pager.OnPage(done.Page, done.Rows)
	if done.Page <= 1 {
		c.stale = false
	}
	c.state = StateSuccess
	c.err = ""
	c.logger.Debugf("page %d applied: %d rows, %d total, more=%t", done.Page, len(done.Rows), c.pager.Len(), c.pager.HasMore())
	return true
}

// Settle applies completions until no fetch is in flight.
func (c *Controller) Settle(ctx context.Context) error {
	for c.state == StateFetching {
		select {
		case done := <-c.completions:
			c.Apply(done)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// reject records an input error. Nothing is fetched, but the generation
// still moves so responses for the previous page are ignored.
func (c *Controller) reject(err error) error {
	c.generation++
	c.override = nil
	c.pager.Reset()
	c.stale = false
	c.state = StateFailed
	c.err = err.Error()
	c.logger.Infof("rejected navigation: %v", err)
	return err
}

// refetch asks for page 1 of the current criteria. The items on screen are
// only replaced once that page arrives.
func (c *Controller) refetch(ctx context.Context) {
	c.stale = c.pager.Fetched()
	c.fetch(ctx, 1)
}

func (c *Controller) fetch(ctx context.Context, page int) {
	c.generation++
	gen := c.generation
	q := compiler.Compile(c.store.Get(), c.override, c.categories, page)
	c.state = StateFetching
	c.err = ""
	c.logger.Debugf("fetch gen=%d page=%d: %s", gen, page, q)

	exec, collection, out, quit := c.exec, c.collection, c.completions, c.quit
	go func() {
		rows, err := exec.Execute(ctx, collection, q)
		select {
		case out <- Completion{Generation: gen, Page: page, Rows: rows, Err: err}:
		case <-quit:
		case <-ctx.Done():
		}
	}()
}
