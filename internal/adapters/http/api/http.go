// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/goccy/go-json"

	"github.com/okian/upsetlens/internal/adapters/mq/queue"
	"github.com/okian/upsetlens/internal/adapters/repository"
	service "github.com/okian/upsetlens/internal/app"
	"github.com/okian/upsetlens/internal/domain/filter"
	"github.com/okian/upsetlens/internal/domain/genre"
	"github.com/okian/upsetlens/internal/domain/groups"
	"github.com/okian/upsetlens/internal/domain/model"
	"github.com/okian/upsetlens/internal/domain/selection"
	"github.com/okian/upsetlens/internal/domain/upset"
	"github.com/okian/upsetlens/pkg/logger"
)

// IdempotencyHeader carries the client request id. Mutations repeated with
// the same id on the same session are applied once.
const IdempotencyHeader = "Idempotency-Key"

const maxBodyBytes = 8 << 20

// Dependencies required by HTTP handlers. *service.Service satisfies it.
type Dependencies interface {
	StatsProvider

	CreateSession(ctx context.Context) (service.SessionInfo, error)
	DeleteSession(ctx context.Context, id string) error
	Selection(ctx context.Context, id string) (service.SelectionView, error)

	Apply(ctx context.Context, id, requestID string, a selection.Action) error
	AddRankings(ctx context.Context, id, requestID string, a selection.AddRankings, hidden bool) (service.RankingsResult, error)

	Groups(ctx context.Context, id string, consolidate bool) (groups.Groups, error)
	Intersections(ctx context.Context, id string, mode upset.Mode, consolidate bool) (groups.Groups, []upset.Record, error)

	Filters(ctx context.Context, id string) ([]filter.Filter, error)
	AddFilter(ctx context.Context, id, requestID string, f filter.Filter) error
	AddIntersectionFilter(ctx context.Context, id, requestID, setLabel string, mode upset.Mode, consolidate bool) (filter.Filter, error)
	AddSetFilter(ctx context.Context, id, requestID, label string, consolidate bool) (filter.Filter, error)
	AddGenreFilter(ctx context.Context, id, requestID, filterID string, rows []genre.Row, genres []string, includeSubgenres bool) (filter.Filter, error)
	RemoveFilter(ctx context.Context, id, requestID, filterID string) error
	Albums(ctx context.Context, id string) ([]model.AlbumID, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps          Dependencies
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	corsOrigins   []string
	logger        logger.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithCORSOrigins sets the origins allowed to call the API from a browser.
func WithCORSOrigins(origins ...string) ServerOption {
	return func(s *Server) {
		s.corsOrigins = origins
	}
}

// WithLogger sets the request logger.
func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		s.logger = l
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...ServerOption) *Server {
	s := &Server{
		deps:          deps,
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(deps),
		corsOrigins:   []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("api")
	}
	return s
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", IdempotencyHeader},
		MaxAge:         300,
	}))
	r.Use(MetricsMiddleware)

	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Get("/stats", s.statsHandler.HandleStats)
	r.Post("/genres/counts", s.handleGenreCounts)

	r.Post("/sessions", s.handleCreateSession)
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/", s.handleGetSession)
		r.Delete("/", s.handleDeleteSession)

		r.Post("/reviews", s.handleAddReviews)
		r.Post("/rankings", s.handleAddRankings)
		r.Post("/bins/click", handleAction[selection.ClickBin](s))
		r.Post("/bins/clear", handleAction[selection.ClearSelection](s))
		r.Post("/bins/all", handleAction[selection.SelectAll](s))
		r.Post("/brush", handleAction[selection.Brush](s))
		r.Post("/brush/clear", handleAction[selection.ClearBrush](s))
		r.Post("/unscored/toggle", handleAction[selection.ToggleUnscored](s))
		r.Delete("/publications/{pubID}", s.handleRemovePublication)

		r.Get("/groups", s.handleGroups)
		r.Get("/intersections", s.handleIntersections)

		r.Get("/filters", s.handleListFilters)
		r.Post("/filters", s.handleAddFilter)
		r.Post("/filters/intersection", s.handleAddIntersectionFilter)
		r.Post("/filters/set", s.handleAddSetFilter)
		r.Post("/filters/genre", s.handleAddGenreFilter)
		r.Delete("/filters/{filterID}", s.handleRemoveFilter)

		r.Get("/albums", s.handleAlbums)
	})
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// fail maps a service error onto a response.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.String("request_id", middleware.GetReqID(r.Context())),
			logger.Error(err),
		)
	}
	writeError(w, status, code, err)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, filter.ErrUnknownKind):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, repository.ErrInvalidID),
		errors.Is(err, filter.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, selection.ErrCacheMiss),
		errors.Is(err, selection.ErrMixedPublications),
		errors.Is(err, selection.ErrInvalidBin),
		errors.Is(err, upset.ErrTooManyGroups),
		errors.Is(err, service.ErrUnknownSet):
		return http.StatusUnprocessableEntity, "unprocessable"
	case errors.Is(err, queue.ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, queue.ErrStopped), errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// decode reads a JSON body into v and validates it.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return validateStruct(v)
}

func requestID(r *http.Request) string {
	return r.Header.Get(IdempotencyHeader)
}

func queryBool(r *http.Request, key string) (bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s=%q", ErrBadRequest, key, raw)
	}
	return v, nil
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
