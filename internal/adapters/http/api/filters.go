package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/upsetlens/internal/domain/filter"
	"github.com/okian/upsetlens/internal/domain/genre"
	"github.com/okian/upsetlens/internal/domain/model"
	"github.com/okian/upsetlens/internal/domain/upset"
)

type intersectionFilterRequest struct {
	SetLabel    string `json:"set_label" validate:"required"`
	Mode        string `json:"mode"`
	Consolidate bool   `json:"consolidate"`
}

type setFilterRequest struct {
	Label       string `json:"label" validate:"required"`
	Consolidate bool   `json:"consolidate"`
}

type genreFilterRequest struct {
	ID               string      `json:"id" validate:"required"`
	Genres           []string    `json:"genres" validate:"required,min=1,dive,required"`
	IncludeSubgenres bool        `json:"include_subgenres"`
	Rows             []genre.Row `json:"rows" validate:"dive"`
}

type genreCountsRequest struct {
	Rows []genre.Row `json:"rows" validate:"dive"`
}

type filtersResponse struct {
	Filters []filter.Filter `json:"filters"`
}

type albumsResponse struct {
	AlbumIDs []model.AlbumID `json:"album_ids"`
	Count    int             `json:"count"`
}

type genreCountsResponse struct {
	Counts []genre.Count `json:"counts"`
}

func (s *Server) handleListFilters(w http.ResponseWriter, r *http.Request) {
	fs, err := s.deps.Filters(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if fs == nil {
		fs = []filter.Filter{}
	}
	writeJSON(w, http.StatusOK, filtersResponse{Filters: fs})
}

func (s *Server) handleAddFilter(w http.ResponseWriter, r *http.Request) {
	var f filter.Filter
	if err := decode(w, r, &f); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.deps.AddFilter(r.Context(), chi.URLParam(r, "id"), requestID(r), f); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (s *Server) handleAddIntersectionFilter(w http.ResponseWriter, r *http.Request) {
	var req intersectionFilterRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	mode, err := upset.ParseMode(req.Mode)
	if err != nil {
		s.fail(w, r, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	f, err := s.deps.AddIntersectionFilter(r.Context(), chi.URLParam(r, "id"), requestID(r), req.SetLabel, mode, req.Consolidate)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (s *Server) handleAddSetFilter(w http.ResponseWriter, r *http.Request) {
	var req setFilterRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	f, err := s.deps.AddSetFilter(r.Context(), chi.URLParam(r, "id"), requestID(r), req.Label, req.Consolidate)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (s *Server) handleAddGenreFilter(w http.ResponseWriter, r *http.Request) {
	var req genreFilterRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	f, err := s.deps.AddGenreFilter(r.Context(), chi.URLParam(r, "id"), requestID(r),
		req.ID, req.Rows, req.Genres, req.IncludeSubgenres)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (s *Server) handleRemoveFilter(w http.ResponseWriter, r *http.Request) {
	err := s.deps.RemoveFilter(r.Context(), chi.URLParam(r, "id"), requestID(r), chi.URLParam(r, "filterID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAlbums(w http.ResponseWriter, r *http.Request) {
	ids, err := s.deps.Albums(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, albumsResponse{AlbumIDs: ids, Count: len(ids)})
}

func (s *Server) handleGenreCounts(w http.ResponseWriter, r *http.Request) {
	var req genreCountsRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	counts := genre.Counts(req.Rows)
	if counts == nil {
		counts = []genre.Count{}
	}
	writeJSON(w, http.StatusOK, genreCountsResponse{Counts: counts})
}
