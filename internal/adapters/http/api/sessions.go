package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/okian/upsetlens/internal/domain/model"
	"github.com/okian/upsetlens/internal/domain/selection"
)

type rankingsRequest struct {
	Years  []model.Year    `json:"years"`
	Hidden bool            `json:"hidden"`
	Rows   []model.Ranking `json:"rows" validate:"dive"`
}

type ackResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	info, err := s.deps.CreateSession(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	view, err := s.deps.Selection(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.DeleteSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddReviews(w http.ResponseWriter, r *http.Request) {
	var req selection.AddReviews
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.deps.Apply(r.Context(), chi.URLParam(r, "id"), requestID(r), req); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Status: "ok"})
}

func (s *Server) handleAddRankings(w http.ResponseWriter, r *http.Request) {
	var req rankingsRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.deps.AddRankings(r.Context(), chi.URLParam(r, "id"), requestID(r),
		selection.AddRankings{Rows: req.Rows, Years: req.Years}, req.Hidden)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleAction decodes a selection action of type A and dispatches it.
func handleAction[A selection.Action](s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var a A
		if err := decode(w, r, &a); err != nil {
			s.fail(w, r, err)
			return
		}
		if err := s.deps.Apply(r.Context(), chi.URLParam(r, "id"), requestID(r), a); err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ackResponse{Status: "ok"})
	}
}

func (s *Server) handleRemovePublication(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "pubID")
	pub, err := strconv.Atoi(raw)
	if err != nil || pub <= 0 {
		s.fail(w, r, fmt.Errorf("%w: publication id %q", ErrBadRequest, raw))
		return
	}
	a := selection.RemovePublication{PublicationID: model.PublicationID(pub)}
	if err := s.deps.Apply(r.Context(), chi.URLParam(r, "id"), requestID(r), a); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
