package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/rubiojr/shelf/pkg/catalog"
	"github.com/rubiojr/shelf/pkg/compiler"
	"github.com/rubiojr/shelf/pkg/filter"
)

// View is everything a renderer needs to draw the result list and the
// filter panel.
type View struct {
	Items      []catalog.Book     `json:"items"`
	Page       int                `json:"page"`
	HasMore    bool               `json:"has_more"`
	Loading    bool               `json:"loading"`
	Fetched    bool               `json:"fetched"`
	Error      string             `json:"error,omitempty"`
	State      string             `json:"state"`
	Generation uint64             `json:"generation"`
	Criteria   filter.Criteria    `json:"criteria"`
	Override   *compiler.Override `json:"override,omitempty"`
	Categories []string           `json:"categories"`
}

// View snapshots the session.
func (c *Controller) View() View {
	v := View{
		Items:      c.pager.Items(),
		Page:       c.pager.Page(),
		HasMore:    c.pager.HasMore(),
		Loading:    c.state == StateFetching,
		Fetched:    c.pager.Fetched(),
		Error:      c.err,
		State:      c.state.String(),
		Generation: c.generation,
		Criteria:   c.store.Get(),
		Categories: c.Categories(),
	}
	if c.override != nil {
		o := *c.override
		v.Override = &o
	}
	if v.Categories == nil {
		v.Categories = []string{}
	}
	return v
}

// EventKind names a session input.
type EventKind string

const (
	EventNavigate       EventKind = "navigate"
	EventSetFilter      EventKind = "set"
	EventResetFilters   EventKind = "reset"
	EventToggleCategory EventKind = "category"
	EventLoadMore       EventKind = "more"
)

// Event is one input to a running session.
type Event struct {
	Kind       EventKind  `json:"type"`
	Navigation Navigation `json:"navigation,omitempty"`
	Key        filter.Key `json:"key,omitempty"`
	Value      string     `json:"value,omitempty"`
}

// ErrUnknownEvent is returned by Handle for unrecognized event kinds.
var ErrUnknownEvent = errors.New("unknown session event")

// Handle dispatches one event. Input errors are also recorded in the view.
func (c *Controller) Handle(ctx context.Context, ev Event) error {
	switch ev.Kind {
	case EventNavigate:
		return c.Navigate(ctx, ev.Navigation)
	case EventSetFilter:
		return c.SetFilter(ctx, ev.Key, ev.Value)
	case EventResetFilters:
		c.ResetFilters(ctx)
	case EventToggleCategory:
		c.ToggleCategory(ctx, ev.Value)
	case EventLoadMore:
		c.LoadMore(ctx)
	default:
		err := fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Kind)
		c.err = err.Error()
		return err
	}
	return nil
}

// Run is the session event loop. It handles events and completions one at
// a time and calls emit with a fresh View after every change. It returns
// when ctx is done or events is closed.
func (c *Controller) Run(ctx context.Context, events <-chan Event, emit func(View)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := c.Handle(ctx, ev); err != nil {
				c.logger.Debugf("event %s: %v", ev.Kind, err)
			}
			emit(c.View())
		case done := <-c.completions:
			if c.Apply(done) {
				emit(c.View())
			}
		}
	}
}
