package session

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/rubiojr/shelf/pkg/catalog"
	"github.com/rubiojr/shelf/pkg/compiler"
	"github.com/rubiojr/shelf/pkg/filter"
	"github.com/rubiojr/shelf/pkg/predicate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeExecutor records every query. When gated, each call blocks until the
// test releases it, which lets tests pick the order responses arrive in.
type fakeExecutor struct {
	mu      sync.Mutex
	queries []predicate.Query
	gates   []gatedCall
	gated   bool
	respond func(q predicate.Query) ([]catalog.Book, error)
}

type gatedCall struct {
	query predicate.Query
	gate  chan struct{}
}

func (f *fakeExecutor) Execute(ctx context.Context, collection string, q predicate.Query) ([]catalog.Book, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	var gate chan struct{}
	if f.gated {
		gate = make(chan struct{})
		f.gates = append(f.gates, gatedCall{query: q, gate: gate})
	}
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.respond == nil {
		return nil, nil
	}
	return f.respond(q)
}

func (f *fakeExecutor) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

func (f *fakeExecutor) query(i int) predicate.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[i]
}

// release unblocks the first pending call whose query matches.
func (f *fakeExecutor) release(t *testing.T, match func(predicate.Query) bool) {
	t.Helper()
	var gate chan struct{}
	require.Eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		for i, call := range f.gates {
			if match(call.query) {
				gate = call.gate
				f.gates = slices.Delete(f.gates, i, i+1)
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond)
	close(gate)
}

func filtered(q predicate.Query) bool { return len(q.Where.Terms) > 0 }

func unfiltered(q predicate.Query) bool { return len(q.Where.Terms) == 0 }

func anyQuery(predicate.Query) bool { return true }

func newController(t *testing.T, exec Executor) *Controller {
	t.Helper()
	c := New(filter.NewStore(), exec, "books")
	t.Cleanup(c.Close)
	return c
}

func settle(t *testing.T, c *Controller) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Settle(ctx))
}

func next(t *testing.T, c *Controller) Completion {
	t.Helper()
	select {
	case done := <-c.Completions():
		return done
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for completion")
		return Completion{}
	}
}

// pages answers with full pages up to total rows.
func pages(total int) func(q predicate.Query) ([]catalog.Book, error) {
	return func(q predicate.Query) ([]catalog.Book, error) {
		n := min(q.Limit, max(total-q.Offset, 0))
		return books("row", n), nil
	}
}

func TestStaleResponseIsDiscarded(t *testing.T) {
	exec := &fakeExecutor{
		gated: true,
		respond: func(q predicate.Query) ([]catalog.Book, error) {
			if filtered(q) {
				return books("filtered", 2), nil
			}
			return books("all", 3), nil
		},
	}
	c := newController(t, exec)
	ctx := context.Background()

	// A: gen 1, filtered.
	require.NoError(t, c.Navigate(ctx, NewQueryNavigation("dune")))
	genA := c.Generation()
	// B: gen 2, criteria reset.
	c.ResetFilters(ctx)
	genB := c.Generation()
	require.Greater(t, genB, genA)

	exec.release(t, unfiltered)
	doneB := next(t, c)
	assert.Equal(t, genB, doneB.Generation)
	assert.True(t, c.Apply(doneB))

	exec.release(t, filtered)
	doneA := next(t, c)
	assert.Equal(t, genA, doneA.Generation)
	assert.False(t, c.Apply(doneA), "late response from an older generation must be ignored")

	v := c.View()
	assert.Equal(t, books("all", 3), v.Items)
	assert.Equal(t, StateSuccess.String(), v.State)
}

func TestPathNavigationFetchesOnceWithOverride(t *testing.T) {
	exec := &fakeExecutor{respond: pages(5)}
	c := newController(t, exec)
	ctx := context.Background()

	nav, err := NewPathNavigation("publisher", "penguin-books")
	require.NoError(t, err)
	require.NoError(t, c.Navigate(ctx, nav))
	settle(t, c)

	require.Equal(t, 1, exec.calls())
	q := exec.query(0)
	require.Len(t, q.Where.Terms, 1)
	assert.Equal(t, predicate.Contains(catalog.ColPublisher, "penguin books"), q.Where.Terms[0])

	v := c.View()
	assert.Equal(t, `publisher:"penguin books"`, v.Criteria.Query)
	assert.Equal(t, &compiler.Override{Field: "publisher", Value: "penguin books"}, v.Override)
	assert.Len(t, v.Items, 5)
	assert.False(t, v.HasMore)
	assert.False(t, v.Loading)
}

func TestOverrideSticksAcrossFilterEdits(t *testing.T) {
	exec := &fakeExecutor{respond: pages(25)}
	c := newController(t, exec)
	ctx := context.Background()

	require.NoError(t, c.Navigate(ctx, Navigation{Field: "year", Value: "1999"}))
	settle(t, c)
	require.NoError(t, c.SetFilter(ctx, filter.KeyLanguage, "en"))
	settle(t, c)
	c.ToggleCategory(ctx, "Fiction")
	settle(t, c)
	require.True(t, c.LoadMore(ctx))
	settle(t, c)

	require.Equal(t, 4, exec.calls())
	dateRange := predicate.Range{Column: catalog.ColPublishedDate, From: "1999-01-01", To: "1999-12-31"}
	for i := 0; i < 4; i++ {
		assert.Equal(t, dateRange, exec.query(i).Where.Terms[0], "query %d", i)
	}
	last := exec.query(3)
	assert.Equal(t, 20, last.Offset)
	assert.Equal(t, []predicate.Node{
		dateRange,
		predicate.Eq(catalog.ColLanguage, "en"),
		predicate.Or{Terms: []predicate.Node{predicate.Has(catalog.ColCategories, "Fiction")}},
	}, last.Where.Terms)

	v := c.View()
	assert.Len(t, v.Items, 25)
	assert.False(t, v.HasMore)
}

func TestQueryNavigationDropsOverride(t *testing.T) {
	exec := &fakeExecutor{respond: pages(0)}
	c := newController(t, exec)
	ctx := context.Background()

	require.NoError(t, c.Navigate(ctx, Navigation{Field: "publisher", Value: "Tor"}))
	settle(t, c)
	require.NoError(t, c.Navigate(ctx, NewQueryNavigation("dune")))
	settle(t, c)

	assert.Nil(t, c.View().Override)
	assert.Equal(t,
		predicate.AnyOf(predicate.OpContains, "dune", catalog.TextColumns...),
		exec.query(1).Where.Terms[0])
}

func TestNavigationWithoutInputsResetsFilters(t *testing.T) {
	exec := &fakeExecutor{respond: pages(0)}
	c := newController(t, exec)
	ctx := context.Background()

	require.NoError(t, c.SetFilter(ctx, filter.KeyYearFrom, "2001"))
	settle(t, c)
	require.NoError(t, c.Navigate(ctx, Navigation{}))
	settle(t, c)

	assert.Equal(t, filter.Defaults(), c.View().Criteria)
	assert.Empty(t, exec.query(1).Where.Terms)
}

func TestInvalidPathDoesNotFetch(t *testing.T) {
	exec := &fakeExecutor{respond: pages(10)}
	c := newController(t, exec)
	ctx := context.Background()

	err := c.Navigate(ctx, Navigation{Field: "shelf", Value: "to read"})
	assert.ErrorIs(t, err, ErrUnknownField)
	err = c.Navigate(ctx, Navigation{Field: "publisher"})
	assert.ErrorIs(t, err, ErrMissingValue)

	assert.Equal(t, 0, exec.calls())
	v := c.View()
	assert.NotEmpty(t, v.Error)
	assert.Equal(t, StateFailed.String(), v.State)
	assert.False(t, v.Loading)
	assert.Empty(t, v.Items)
}

func TestInvalidPathInvalidatesInFlightFetch(t *testing.T) {
	exec := &fakeExecutor{gated: true, respond: pages(10)}
	c := newController(t, exec)
	ctx := context.Background()

	require.NoError(t, c.Navigate(ctx, NewQueryNavigation("dune")))
	require.Error(t, c.Navigate(ctx, Navigation{Field: "nope", Value: "x"}))

	exec.release(t, anyQuery)
	assert.False(t, c.Apply(next(t, c)))
	assert.Empty(t, c.View().Items)
}

func TestInlineTokensUpdateCriteria(t *testing.T) {
	exec := &fakeExecutor{respond: pages(0)}
	c := newController(t, exec)
	ctx := context.Background()

	require.NoError(t, c.Navigate(ctx, NewQueryNavigation(`narrator:Unknown genre:"Sci-Fi"`)))
	settle(t, c)

	want := filter.Defaults()
	want.Query = `narrator:Unknown genre:"Sci-Fi"`
	want.FictionType = "Sci-Fi"
	assert.Equal(t, want, c.View().Criteria)

	require.NoError(t, c.SetFilter(ctx, filter.KeyQuery, "year:1999 language:fr format:epub"))
	settle(t, c)
	got := c.View().Criteria
	assert.Equal(t, "1999", got.YearFrom)
	assert.Equal(t, "1999", got.YearTo)
	assert.Equal(t, "fr", got.Language)
	assert.Equal(t, "epub", got.FileType)
}

func TestLoadMoreAccumulates(t *testing.T) {
	exec := &fakeExecutor{respond: pages(45)}
	c := newController(t, exec)
	ctx := context.Background()

	assert.False(t, c.LoadMore(ctx), "nothing to continue before the first page")

	require.NoError(t, c.Navigate(ctx, NewQueryNavigation("dune")))
	assert.False(t, c.LoadMore(ctx), "no load more while fetching")
	settle(t, c)
	assert.True(t, c.View().HasMore)

	require.True(t, c.LoadMore(ctx))
	settle(t, c)
	require.True(t, c.LoadMore(ctx))
	settle(t, c)

	v := c.View()
	assert.Len(t, v.Items, 45)
	assert.Equal(t, 3, v.Page)
	assert.False(t, v.HasMore)
	assert.False(t, c.LoadMore(ctx))
	assert.Equal(t, 3, exec.calls())
}

func TestEmptyContinuationKeepsResults(t *testing.T) {
	exec := &fakeExecutor{respond: pages(20)}
	c := newController(t, exec)
	ctx := context.Background()

	require.NoError(t, c.Navigate(ctx, Navigation{}))
	settle(t, c)
	require.True(t, c.LoadMore(ctx))
	settle(t, c)

	v := c.View()
	assert.Len(t, v.Items, 20)
	assert.False(t, v.HasMore)
}

func TestExecutorErrorKeepsResults(t *testing.T) {
	fail := false
	exec := &fakeExecutor{respond: func(q predicate.Query) ([]catalog.Book, error) {
		if fail {
			return nil, errors.New("catalog unavailable")
		}
		return pages(100)(q)
	}}
	c := newController(t, exec)
	ctx := context.Background()

	require.NoError(t, c.Navigate(ctx, Navigation{}))
	settle(t, c)

	fail = true
	require.True(t, c.LoadMore(ctx))
	settle(t, c)

	v := c.View()
	assert.Equal(t, "catalog unavailable", v.Error)
	assert.Equal(t, StateFailed.String(), v.State)
	assert.Len(t, v.Items, 20)
	assert.True(t, v.HasMore)

	// The next interactive change simply tries again.
	fail = false
	require.NoError(t, c.SetFilter(ctx, filter.KeySortBy, "title_asc"))
	settle(t, c)
	v = c.View()
	assert.Empty(t, v.Error)
	assert.Len(t, v.Items, 20)
}

func TestFailedRefetchKeepsResults(t *testing.T) {
	fail := false
	exec := &fakeExecutor{respond: func(q predicate.Query) ([]catalog.Book, error) {
		if fail {
			return nil, errors.New("catalog unavailable")
		}
		return pages(100)(q)
	}}
	c := newController(t, exec)
	ctx := context.Background()

	require.NoError(t, c.Navigate(ctx, Navigation{}))
	settle(t, c)
	require.Len(t, c.View().Items, 20)

	fail = true
	require.NoError(t, c.SetFilter(ctx, filter.KeyLanguage, "de"))
	v := c.View()
	assert.True(t, v.Loading)
	assert.Len(t, v.Items, 20, "items stay on screen while page 1 loads")
	settle(t, c)

	v = c.View()
	assert.Equal(t, "catalog unavailable", v.Error)
	assert.Equal(t, StateFailed.String(), v.State)
	assert.Len(t, v.Items, 20)
	assert.True(t, v.HasMore)
	assert.True(t, v.Fetched)

	c.ToggleCategory(ctx, "Fiction")
	settle(t, c)
	v = c.View()
	assert.Equal(t, "catalog unavailable", v.Error)
	assert.Len(t, v.Items, 20)
	assert.True(t, v.HasMore)

	// Load more retries page 1 of the new criteria rather than continuing
	// the old result set.
	fail = false
	require.True(t, c.LoadMore(ctx))
	settle(t, c)
	last := exec.query(exec.calls() - 1)
	assert.Equal(t, 0, last.Offset)
	assert.Equal(t, []predicate.Node{
		predicate.Eq(catalog.ColLanguage, "de"),
		predicate.Or{Terms: []predicate.Node{predicate.Has(catalog.ColCategories, "Fiction")}},
	}, last.Where.Terms)

	v = c.View()
	assert.Empty(t, v.Error)
	assert.Equal(t, 1, v.Page)
	assert.Len(t, v.Items, 20)

	require.True(t, c.LoadMore(ctx))
	settle(t, c)
	assert.Equal(t, 20, exec.query(exec.calls()-1).Offset)
	assert.Len(t, c.View().Items, 40)
}

func TestToggleCategory(t *testing.T) {
	exec := &fakeExecutor{respond: pages(0)}
	c := newController(t, exec)
	ctx := context.Background()

	c.ToggleCategory(ctx, "Fiction")
	c.ToggleCategory(ctx, "History")
	c.ToggleCategory(ctx, "Fiction")
	c.ToggleCategory(ctx, "  ")
	settle(t, c)

	assert.Equal(t, []string{"History"}, c.Categories())
	assert.Equal(t, 3, exec.calls())

	c.ResetFilters(ctx)
	settle(t, c)
	assert.Empty(t, c.Categories())
}

func TestSetFilterUnknownKey(t *testing.T) {
	exec := &fakeExecutor{}
	c := newController(t, exec)

	err := c.SetFilter(context.Background(), "colour", "blue")
	assert.ErrorIs(t, err, filter.ErrUnknownKey)
	assert.Equal(t, 0, exec.calls())
	assert.NotEmpty(t, c.View().Error)
}

func TestRunLoop(t *testing.T) {
	exec := &fakeExecutor{respond: pages(30)}
	c := newController(t, exec)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan Event)
	views := make(chan View, 16)
	errc := make(chan error, 1)
	go func() {
		errc <- c.Run(ctx, events, func(v View) { views <- v })
	}()

	waitFor := func(pred func(View) bool) View {
		t.Helper()
		for {
			select {
			case v := <-views:
				if pred(v) {
					return v
				}
			case <-time.After(2 * time.Second):
				t.Fatal("timed out waiting for view")
			}
		}
	}

	events <- Event{Kind: EventNavigate, Navigation: NewQueryNavigation("dune")}
	v := waitFor(func(v View) bool { return v.Fetched && !v.Loading })
	assert.Len(t, v.Items, 20)

	events <- Event{Kind: EventLoadMore}
	v = waitFor(func(v View) bool { return v.Page == 2 && !v.Loading })
	assert.Len(t, v.Items, 30)
	assert.False(t, v.HasMore)

	events <- Event{Kind: "bogus"}
	v = waitFor(func(v View) bool { return v.Error != "" })
	assert.Contains(t, v.Error, "bogus")

	close(events)
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after events closed")
	}
}

func TestHandleUnknownEvent(t *testing.T) {
	exec := &fakeExecutor{}
	c := newController(t, exec)

	err := c.Handle(context.Background(), Event{Kind: "rewind"})
	assert.ErrorIs(t, err, ErrUnknownEvent)
	assert.Contains(t, err.Error(), `"rewind"`)
	assert.Equal(t, 0, exec.calls())
}
