package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rubiojr/shelf/pkg/filter"
	"github.com/rubiojr/shelf/pkg/search"
	"github.com/rubiojr/shelf/pkg/session"
	"github.com/rubiojr/shelf/pkg/storage"
	"github.com/rubiojr/shelf/pkg/version"
)

func (s *Server) HandleBooks(w http.ResponseWriter, r *http.Request) {
	params, err := search.ParseSearchParams(r.URL.Query())
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid parameters", err.Error())
		return
	}
	s.runSearch(w, r, params)
}

// HandleBooksByField serves metadata deep links such as
// /api/books/publisher/penguin-books. Query parameters refine the lookup;
// q is ignored since the path selects the primary clause.
func (s *Server) HandleBooksByField(w http.ResponseWriter, r *http.Request) {
	params, err := search.ParseSearchParams(r.URL.Query())
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid parameters", err.Error())
		return
	}
	params.Navigation = session.NewSlugNavigation(r.PathValue("field"), r.PathValue("value"))
	s.runSearch(w, r, params)
}

func (s *Server) runSearch(w http.ResponseWriter, r *http.Request, params search.SearchParams) {
	results, err := s.search.Search(r.Context(), params)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrUnknownField):
			s.writeError(w, http.StatusNotFound, "Unknown field", err.Error())
		case errors.Is(err, session.ErrMissingValue), errors.Is(err, filter.ErrUnknownKey):
			s.writeError(w, http.StatusBadRequest, "Invalid parameters", err.Error())
		default:
			s.writeError(w, http.StatusInternalServerError, "Search failed", queryMessage(err))
			s.logger.Warnf("search failed: %v", err)
		}
		return
	}

	s.writeJSON(w, http.StatusOK, BooksResponse{
		Books:      results.Books,
		Count:      len(results.Books),
		Page:       results.Page,
		Limit:      results.Limit,
		TotalPages: results.TotalPages,
		HasMore:    results.HasMore,
		Criteria:   results.Criteria,
		Override:   results.Override,
		Categories: params.Categories,
	})
}

// queryMessage hides driver details from clients.
func queryMessage(err error) string {
	var qerr *storage.QueryError
	if errors.As(err, &qerr) {
		return qerr.Message
	}
	return err.Error()
}

func (s *Server) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.catalog.Stats(r.Context(), s.collection)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to get stats", fmt.Sprintf("collection %s: %v", s.collection, err))
		return
	}

	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   version.APIVersion(),
	}

	s.writeJSON(w, http.StatusOK, health)
}
