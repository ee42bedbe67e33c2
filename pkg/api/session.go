package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/rubiojr/shelf/pkg/filter"
	"github.com/rubiojr/shelf/pkg/session"
)

const writeTimeout = 10 * time.Second

// sessionConn serializes writes; the session loop and the reader both send.
type sessionConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *sessionConn) send(msg SessionMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteJSON(msg)
}

// HandleSession upgrades to a websocket and runs a live search session on
// it. The initial URL may carry field/value (a deep link) or q. Every state
// change is pushed to the client as a view message.
func (s *Server) HandleSession(w http.ResponseWriter, r *http.Request) {
	initial, err := initialNavigation(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid parameters", err.Error())
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		s.logger.Debugf("websocket upgrade: %v", err)
		return
	}
	defer func() { _ = ws.Close() }()

	id := uuid.NewString()
	conn := &sessionConn{conn: ws}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ctrl := session.New(filter.NewStore(), s.catalog, s.collection)
	defer ctrl.Close()

	if err := conn.send(SessionMessage{Type: MessageInit, Session: id}); err != nil {
		s.logger.Debugf("session %s: send init: %v", id, err)
		return
	}
	s.logger.Debugf("session %s: opened from %s", id, r.RemoteAddr)

	if initial != nil {
		// Rejected paths are reported through the view.
		_ = ctrl.Navigate(ctx, *initial)
		if err := conn.send(SessionMessage{Type: MessageView, View: viewOf(ctrl)}); err != nil {
			return
		}
	}

	events := make(chan session.Event)
	go s.readSession(ctx, id, ws, conn, events)

	err = ctrl.Run(ctx, events, func(v session.View) {
		if err := conn.send(SessionMessage{Type: MessageView, View: &v}); err != nil {
			s.logger.Debugf("session %s: send view: %v", id, err)
			cancel()
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warnf("session %s: %v", id, err)
	}
	s.logger.Debugf("session %s: closed", id)
}

func viewOf(ctrl *session.Controller) *session.View {
	v := ctrl.View()
	return &v
}

func initialNavigation(r *http.Request) (*session.Navigation, error) {
	q := r.URL.Query()
	field, value := q.Get("field"), q.Get("value")
	switch {
	case field != "" || value != "":
		nav, err := session.NewPathNavigation(field, value)
		if err != nil {
			return nil, err
		}
		return &nav, nil
	case q.Has("q"):
		nav := session.NewQueryNavigation(q.Get("q"))
		return &nav, nil
	default:
		return nil, nil
	}
}

// readSession turns client messages into session events. It closes events
// when the client goes away, stays idle for too long, or ctx ends.
func (s *Server) readSession(ctx context.Context, id string, ws *websocket.Conn, conn *sessionConn, events chan<- session.Event) {
	defer close(events)

	limiter := rate.NewLimiter(rate.Inf, 0)
	if s.limits.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.limits.Rate), max(s.limits.Burst, 1))
	}

	for {
		if s.limits.IdleTimeout > 0 {
			if err := ws.SetReadDeadline(time.Now().Add(s.limits.IdleTimeout)); err != nil {
				s.logger.Warnf("session %s: set read deadline: %v", id, err)
			}
		}

		_, data, err := ws.ReadMessage()
		if err != nil {
			var netErr net.Error
			switch {
			case errors.As(err, &netErr) && netErr.Timeout():
				s.logger.Debugf("session %s: idle timeout", id)
			case websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
				s.logger.Debugf("session %s: read: %v", id, err)
			}
			return
		}

		if err := limiter.Wait(ctx); err != nil {
			return
		}

		var req SessionRequest
		if err := json.Unmarshal(data, &req); err != nil {
			if conn.send(SessionMessage{Type: MessageError, Error: "malformed message: " + err.Error()}) != nil {
				return
			}
			continue
		}

		ev, err := req.Event()
		if err != nil {
			if conn.send(SessionMessage{Type: MessageError, Error: err.Error()}) != nil {
				return
			}
			continue
		}

		select {
		case events <- ev:
		case <-ctx.Done():
			return
		}
	}
}
