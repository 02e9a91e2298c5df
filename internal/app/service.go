// Package service wires sessions, the command pool and the set engines into
// the operations the HTTP API exposes.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/okian/upsetlens/internal/adapters/mq/queue"
	workerpool "github.com/okian/upsetlens/internal/adapters/mq/worker"
	"github.com/okian/upsetlens/internal/adapters/repository"
	"github.com/okian/upsetlens/internal/domain/binning"
	"github.com/okian/upsetlens/internal/domain/dedupe"
	"github.com/okian/upsetlens/internal/domain/filter"
	"github.com/okian/upsetlens/internal/domain/genre"
	"github.com/okian/upsetlens/internal/domain/groups"
	"github.com/okian/upsetlens/internal/domain/model"
	"github.com/okian/upsetlens/internal/domain/selection"
	"github.com/okian/upsetlens/internal/domain/upset"
	"github.com/okian/upsetlens/pkg/logger"
	"github.com/okian/upsetlens/pkg/metrics"
)

// SnapshotStore persists session snapshots.
type SnapshotStore interface {
	Save(ctx context.Context, snap repository.Snapshot) error
	Delete(ctx context.Context, id string) error
	All(ctx context.Context) ([]repository.Snapshot, error)
}

// Service owns every live session.
type Service struct {
	mu sync.RWMutex

	sessions  *repository.MemoryStore
	pool      *workerpool.Pool
	deduper   dedupe.Deduper
	snapshots SnapshotStore

	sessionCapacity    int
	shardCount         int
	queueSize          int
	dedupeSize         int
	maxGroups          int
	minStep            float64
	sentinel           float64
	dedupeConsolidated bool
	dedupeUnion        bool

	started bool
	logger  logger.Logger
}

// SessionInfo describes a session.
type SessionInfo struct {
	ID      string    `json:"id"`
	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
}

// SelectionView is the read model of one session's selection.
type SelectionView struct {
	SessionInfo
	Publications   []model.PublicationID  `json:"publications"`
	Ranges         []selection.RangeEntry `json:"ranges"`
	Brushes        []selection.BrushEntry `json:"brushes"`
	SelectionCount int                    `json:"selection_count"`
}

// RankingsResult reports how the unscored policy shaped a ranking batch.
type RankingsResult struct {
	Kept     int `json:"kept"`
	Excluded int `json:"excluded"`
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		sessionCapacity: 1024,
		shardCount:      runtime.NumCPU(),
		queueSize:       256,
		dedupeSize:      10000,
		maxGroups:       upset.DefaultMaxGroups,
		minStep:         binning.DefaultMinStep,
		sentinel:        model.DefaultUnscoredSentinel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds the components, restores persisted sessions and starts the
// command pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.sessions = repository.NewMemoryStore(
		repository.WithCapacity(s.sessionCapacity),
		repository.WithSelectionOptions(
			selection.WithMinStep(s.minStep),
			selection.WithUnscoredSentinel(s.sentinel),
		),
		repository.WithEvictHook(s.forgetSnapshot),
	)
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))

	poolOpts := []workerpool.PoolOption{
		workerpool.WithShards(s.shardCount),
		workerpool.WithQueueSize(s.queueSize),
	}
	if s.snapshots != nil {
		poolOpts = append(poolOpts, workerpool.WithPoolPersister(s.snapshots))
		if err := s.restore(ctx); err != nil {
			return err
		}
	}
	// Workers outlive ctx; Stop closes the queues and drains them.
	s.pool = workerpool.NewPool(s.sessions, poolOpts...)
	s.pool.Start(context.WithoutCancel(ctx))

	s.started = true
	s.logger.Info(ctx, "service started",
		logger.Int("shards", s.shardCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("sessionCapacity", s.sessionCapacity),
		logger.Int("maxGroups", s.maxGroups),
		logger.Bool("persistent", s.snapshots != nil),
	)
	return nil
}

func (s *Service) restore(ctx context.Context) error {
	snaps, err := s.snapshots.All(ctx)
	if err != nil {
		return fmt.Errorf("restore sessions: %w", err)
	}
	for _, snap := range snaps {
		if _, err := s.sessions.Put(ctx, snap); err != nil {
			s.logger.Warn(ctx, "skipping snapshot", logger.String("session_id", snap.ID), logger.Error(err))
		}
	}
	s.logger.Info(ctx, "sessions restored", logger.Int("count", s.sessions.Count(ctx)))
	return nil
}

func (s *Service) forgetSnapshot(id string) {
	if s.snapshots == nil {
		return
	}
	if err := s.snapshots.Delete(context.Background(), id); err != nil {
		s.logger.Warn(context.Background(), "failed to delete evicted snapshot",
			logger.String("session_id", id), logger.Error(err))
	}
}

// Stop drains the command pool.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping service...")
	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Error(ctx, "pool shutdown", logger.Error(err))
	}
	s.started = false
	s.logger.Info(ctx, "service stopped")
}

func (s *Service) session(ctx context.Context, id string) (*repository.Session, error) {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()
	if !started {
		return nil, ErrNotStarted
	}
	return s.sessions.Get(ctx, id)
}

// submit runs fn on the session's shard. A non-empty requestID is applied
// at most once per session. The key is released when the command never
// reached a queue or when fn rejected it; once queued, a caller that stops
// waiting leaves the key recorded.
func (s *Service) submit(ctx context.Context, id, requestID, name string, fn func(*repository.Session) error) error {
	if _, err := s.session(ctx, id); err != nil {
		return err
	}
	if requestID == "" {
		return s.pool.Submit(ctx, queue.NewCommand(id, name, fn))
	}

	key := dedupe.Key(id, requestID)
	if s.deduper.SeenAndRecord(ctx, key) {
		s.logger.Debug(ctx, "duplicate request skipped",
			logger.String("session_id", id), logger.String("request_id", requestID))
		return nil
	}
	apply := func(sess *repository.Session) error {
		err := fn(sess)
		if err != nil {
			s.deduper.Unrecord(context.WithoutCancel(ctx), key)
		}
		return err
	}
	err := s.pool.Submit(ctx, queue.NewCommand(id, name, apply))
	if errors.Is(err, workerpool.ErrNotApplied) {
		s.deduper.Unrecord(ctx, key)
	}
	return err
}

// CreateSession starts an empty session.
func (s *Service) CreateSession(ctx context.Context) (SessionInfo, error) {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()
	if !started {
		return SessionInfo{}, ErrNotStarted
	}
	sess, err := s.sessions.Create(ctx)
	if err != nil {
		return SessionInfo{}, err
	}
	s.logger.Debug(ctx, "session created", logger.String("session_id", sess.ID))
	return info(sess), nil
}

// DeleteSession drops a session and its snapshot.
func (s *Service) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.session(ctx, id); err != nil {
		return err
	}
	if err := s.sessions.Delete(ctx, id); err != nil {
		return err
	}
	s.forgetSnapshot(id)
	return nil
}

// Apply dispatches a selection action on the session.
func (s *Service) Apply(ctx context.Context, id, requestID string, a selection.Action) error {
	return s.submit(ctx, id, requestID, a.Name(), func(sess *repository.Session) error {
		return sess.Update(func(st *selection.Store, _ *filter.List) error {
			return st.Dispatch(a)
		})
	})
}

// AddRankings caches ranking rows and sets the unscored toggle of every
// affected year to hidden. The counts follow the ranking fetch contract.
func (s *Service) AddRankings(ctx context.Context, id, requestID string, a selection.AddRankings, hidden bool) (RankingsResult, error) {
	kept, excluded := model.ApplyUnscoredPolicy(a.Rows, hidden, s.sentinel)
	err := s.submit(ctx, id, requestID, a.Name(), func(sess *repository.Session) error {
		return sess.Update(func(st *selection.Store, _ *filter.List) error {
			if err := st.Dispatch(a); err != nil {
				return err
			}
			if len(a.Rows) == 0 {
				return nil
			}
			pub := a.Rows[0].PublicationID
			for _, y := range rankingYears(a) {
				if st.UnscoredHidden(y, pub) != hidden {
					if err := st.Dispatch(selection.ToggleUnscored{PublicationID: pub, Years: []model.Year{y}}); err != nil {
						return err
					}
				}
			}
			return nil
		})
	})
	if err != nil {
		return RankingsResult{}, err
	}
	return RankingsResult{Kept: len(kept), Excluded: excluded}, nil
}

func rankingYears(a selection.AddRankings) []model.Year {
	if len(a.Years) > 0 {
		return a.Years
	}
	seen := make(map[model.Year]struct{})
	var out []model.Year
	for _, r := range a.Rows {
		if _, ok := seen[r.Year]; !ok {
			seen[r.Year] = struct{}{}
			out = append(out, r.Year)
		}
	}
	return out
}

// Selection returns the selection read model.
func (s *Service) Selection(ctx context.Context, id string) (SelectionView, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return SelectionView{}, err
	}
	v := SelectionView{SessionInfo: info(sess)}
	sess.View(func(st *selection.Store, _ *filter.List) {
		v.Publications = st.Publications()
		v.Ranges = st.Ranges()
		v.Brushes = st.Brushes()
		v.SelectionCount = st.SelectionCount()
	})
	return v, nil
}

// Groups derives the session's groups.
func (s *Service) Groups(ctx context.Context, id string, consolidate bool) (groups.Groups, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return nil, err
	}
	var g groups.Groups
	sess.View(func(st *selection.Store, _ *filter.List) {
		g = s.derive(st, consolidate)
	})
	metrics.UpdateGroupCount(g.Len())
	return g, nil
}

func (s *Service) derive(st *selection.Store, consolidate bool) groups.Groups {
	return groups.Derive(st, groups.Options{Consolidate: consolidate, Dedupe: s.dedupeConsolidated})
}

// Intersections computes the session's intersection records together with
// the groups their bit vectors index, both from one settled view of the
// session.
func (s *Service) Intersections(ctx context.Context, id string, mode upset.Mode, consolidate bool) (groups.Groups, []upset.Record, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	var g groups.Groups
	sess.View(func(st *selection.Store, _ *filter.List) {
		g = s.derive(st, consolidate)
	})
	metrics.UpdateGroupCount(g.Len())
	records, err := s.compute(g, mode)
	if err != nil {
		return nil, nil, err
	}
	return g, records, nil
}

func (s *Service) compute(g groups.Groups, mode upset.Mode) ([]upset.Record, error) {
	start := time.Now()
	records, err := upset.Compute(g, mode, upset.WithMaxGroups(s.maxGroups))
	if err != nil {
		metrics.RecordErrorByComponent("upset", "too_many_groups")
		return nil, err
	}
	metrics.RecordUpsetComputation(mode.String(), float64(time.Since(start).Microseconds())/1000, len(records))
	return records, nil
}

// Filters lists the session's active filters.
func (s *Service) Filters(ctx context.Context, id string) ([]filter.Filter, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return nil, err
	}
	var out []filter.Filter
	sess.View(func(_ *selection.Store, l *filter.List) {
		out = l.Filters()
	})
	return out, nil
}

// AddFilter appends f. A duplicate id is kept and logged.
func (s *Service) AddFilter(ctx context.Context, id, requestID string, f filter.Filter) error {
	return s.submit(ctx, id, requestID, "add_filter", func(sess *repository.Session) error {
		return sess.Update(func(_ *selection.Store, l *filter.List) error {
			return s.appendFilter(ctx, id, l, f)
		})
	})
}

func (s *Service) appendFilter(ctx context.Context, sessionID string, l *filter.List, f filter.Filter) error {
	dup, err := l.Add(f)
	if err != nil {
		return err
	}
	if dup {
		s.logger.Warn(ctx, "duplicate filter id",
			logger.String("session_id", sessionID),
			logger.String("filter_id", f.ID),
		)
	}
	return nil
}

// AddIntersectionFilter adds a filter for the intersection record labelled
// setLabel, computed from the session's current groups.
func (s *Service) AddIntersectionFilter(ctx context.Context, id, requestID, setLabel string, mode upset.Mode, consolidate bool) (filter.Filter, error) {
	var added filter.Filter
	err := s.submit(ctx, id, requestID, "add_intersection_filter", func(sess *repository.Session) error {
		return sess.Update(func(st *selection.Store, l *filter.List) error {
			records, err := s.compute(s.derive(st, consolidate), mode)
			if err != nil {
				return err
			}
			for _, r := range records {
				if r.SetLabel == setLabel {
					added = filter.FromRecord(r)
					return s.appendFilter(ctx, id, l, added)
				}
			}
			return fmt.Errorf("%w: %q", ErrUnknownSet, setLabel)
		})
	})
	return added, err
}

// AddSetFilter adds a filter for every album of one group.
func (s *Service) AddSetFilter(ctx context.Context, id, requestID, label string, consolidate bool) (filter.Filter, error) {
	var added filter.Filter
	err := s.submit(ctx, id, requestID, "add_set_filter", func(sess *repository.Session) error {
		return sess.Update(func(st *selection.Store, l *filter.List) error {
			ids, ok := s.derive(st, consolidate).Get(label)
			if !ok {
				return fmt.Errorf("%w: %q", ErrUnknownSet, label)
			}
			added = filter.FromGroup(label, ids)
			return s.appendFilter(ctx, id, l, added)
		})
	})
	return added, err
}

// AddGenreFilter adds a genre filter built from genre rows.
func (s *Service) AddGenreFilter(ctx context.Context, id, requestID, filterID string, rows []genre.Row, genres []string, includeSubgenres bool) (filter.Filter, error) {
	f := genre.NewFilter(filterID, rows, genres, includeSubgenres)
	if err := s.AddFilter(ctx, id, requestID, f); err != nil {
		return filter.Filter{}, err
	}
	return f, nil
}

// RemoveFilter removes the first filter with filterID.
func (s *Service) RemoveFilter(ctx context.Context, id, requestID, filterID string) error {
	return s.submit(ctx, id, requestID, "remove_filter", func(sess *repository.Session) error {
		return sess.Update(func(_ *selection.Store, l *filter.List) error {
			return l.Remove(filterID)
		})
	})
}

// Albums resolves the session's filters into album ids.
func (s *Service) Albums(ctx context.Context, id string) ([]model.AlbumID, error) {
	filters, err := s.Filters(ctx, id)
	if err != nil {
		return nil, err
	}
	ids := filter.Resolve(filters, filter.WithUnionDedupe(s.dedupeUnion))
	metrics.RecordFilterResolution(len(ids))
	return ids, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]any{
		"started":         s.started,
		"shardCount":      s.shardCount,
		"queueSize":       s.queueSize,
		"sessionCapacity": s.sessionCapacity,
		"maxGroups":       s.maxGroups,
		"persistent":      s.snapshots != nil,
	}
	if s.started {
		n := s.sessions.Count(ctx)
		stats["sessions"] = n
		stats["pendingCommands"] = s.pool.Len(ctx)
		stats["requestIDs"] = s.deduper.Size()
		metrics.UpdateSessionsActive(n)
	}
	return stats
}

func info(sess *repository.Session) SessionInfo {
	return SessionInfo{ID: sess.ID, Created: sess.Created, Updated: sess.Updated()}
}
