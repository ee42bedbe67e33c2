package api

import (
	"time"

	"github.com/rubiojr/shelf/pkg/catalog"
	"github.com/rubiojr/shelf/pkg/compiler"
	"github.com/rubiojr/shelf/pkg/filter"
	"github.com/rubiojr/shelf/pkg/session"
)

type BooksResponse struct {
	Books      []catalog.Book     `json:"books"`
	Count      int                `json:"count"`
	Page       int                `json:"page"`
	Limit      int                `json:"limit"`
	TotalPages int                `json:"total_pages"`
	HasMore    bool               `json:"has_more"`
	Criteria   filter.Criteria    `json:"criteria"`
	Override   *compiler.Override `json:"override,omitempty"`
	Categories []string           `json:"categories,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// SessionRequest is a client message on /api/session.
//
//	{"type":"navigate","field":"publisher","value":"penguin-books"}
//	{"type":"navigate","query":"dune year:1965"}
//	{"type":"set","key":"sort_by","value":"title_asc"}
//	{"type":"reset"}
//	{"type":"category","value":"Fiction"}
//	{"type":"more"}
type SessionRequest struct {
	Type  string `json:"type"`
	Field string `json:"field,omitempty"`
	Value string `json:"value,omitempty"`
	Query string `json:"query,omitempty"`
	Key   string `json:"key,omitempty"`
}

// Event converts the request to a session event. Navigation values are
// slugs, decoded like a deep-link path segment.
func (m SessionRequest) Event() (session.Event, error) {
	ev := session.Event{
		Kind:  session.EventKind(m.Type),
		Key:   filter.Key(m.Key),
		Value: m.Value,
	}
	if ev.Kind != session.EventNavigate {
		return ev, nil
	}
	ev.Value = ""
	if m.Field != "" || m.Value != "" {
		nav, err := session.NewPathNavigation(m.Field, m.Value)
		if err != nil {
			return ev, err
		}
		ev.Navigation = nav
		return ev, nil
	}
	ev.Navigation = session.NewQueryNavigation(m.Query)
	return ev, nil
}

// Server to client message types.
const (
	MessageInit  = "init"
	MessageView  = "view"
	MessageError = "error"
)

// SessionMessage is a server message on /api/session.
type SessionMessage struct {
	Type    string        `json:"type"`
	Session string        `json:"session,omitempty"`
	View    *session.View `json:"view,omitempty"`
	Error   string        `json:"error,omitempty"`
}
