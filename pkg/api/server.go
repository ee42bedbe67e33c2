package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rubiojr/shelf/pkg/log"
	"github.com/rubiojr/shelf/pkg/search"
	"github.com/rubiojr/shelf/pkg/session"
	"github.com/rubiojr/shelf/pkg/storage"
)

// Catalog is the storage the API reads from.
type Catalog interface {
	session.Executor
	Stats(ctx context.Context, collection string) (*storage.Stats, error)
}

// SessionLimits bound each live search session.
type SessionLimits struct {
	// Rate is the number of messages per second a client may send.
	Rate  float64
	Burst int
	// IdleTimeout closes sessions that send nothing for this long.
	IdleTimeout time.Duration
}

type Server struct {
	catalog    Catalog
	collection string
	search     *search.Service
	limits     SessionLimits
	upgrader   websocket.Upgrader
	logger     *log.Logger
}

func NewServer(catalog Catalog, collection string, limits SessionLimits) *Server {
	return &Server{
		catalog:    catalog,
		collection: collection,
		search:     search.NewSearchService(catalog, collection),
		limits:     limits,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// CORS is open for the JSON API; sessions follow suit.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: log.ForService("api"),
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Errorf("encoding JSON response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, error, message string) {
	response := ErrorResponse{
		Error:   error,
		Message: message,
	}
	s.writeJSON(w, status, response)
}

func CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
