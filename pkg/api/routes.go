package api

import (
	"net/http"
)

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/books", s.HandleBooks)
	mux.HandleFunc("GET /api/books/{field}/{value}", s.HandleBooksByField)
	mux.HandleFunc("GET /api/session", s.HandleSession)
	mux.HandleFunc("GET /api/stats", s.HandleStats)
	mux.HandleFunc("GET /health", s.HandleHealth)
}
