package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/upsetlens/internal/domain/groups"
	"github.com/okian/upsetlens/internal/domain/upset"
)

type groupsResponse struct {
	Groups groups.Groups `json:"groups"`
}

type intersectionsResponse struct {
	Mode    string         `json:"mode"`
	Labels  []string       `json:"labels"`
	Records []upset.Record `json:"records"`
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	consolidate, err := queryBool(r, "consolidate")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	g, err := s.deps.Groups(r.Context(), chi.URLParam(r, "id"), consolidate)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if g == nil {
		g = groups.Groups{}
	}
	writeJSON(w, http.StatusOK, groupsResponse{Groups: g})
}

// handleIntersections also returns the group labels so a client can read the
// bit vector of each record. Labels and records come from the same view.
func (s *Server) handleIntersections(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode, err := upset.ParseMode(q.Get("mode"))
	if err != nil {
		s.fail(w, r, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	consolidate, err := queryBool(r, "consolidate")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sortBy := q.Get("sort")
	if sortBy != "" && sortBy != "size" {
		s.fail(w, r, fmt.Errorf("%w: sort=%q", ErrBadRequest, sortBy))
		return
	}

	g, records, err := s.deps.Intersections(r.Context(), chi.URLParam(r, "id"), mode, consolidate)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if sortBy == "size" {
		upset.SortBySize(records)
	}
	labels := g.Labels()
	if labels == nil {
		labels = []string{}
	}
	writeJSON(w, http.StatusOK, intersectionsResponse{Mode: mode.String(), Labels: labels, Records: records})
}
