package repository

import (
	"sync"
	"time"

	"github.com/okian/upsetlens/internal/domain/filter"
	"github.com/okian/upsetlens/internal/domain/selection"
)

// Session is the state of one dashboard user: a selection store and the
// active filters. Writers go through Update, readers through View.
type Session struct {
	ID      string
	Created time.Time

	mu      sync.RWMutex
	updated time.Time
	store   *selection.Store
	filters filter.List
}

// Snapshot is the serializable form of a Session.
type Snapshot struct {
	ID        string             `json:"id"`
	Created   time.Time          `json:"created"`
	Updated   time.Time          `json:"updated"`
	Selection selection.Snapshot `json:"selection"`
	Filters   []filter.Filter    `json:"filters"`
}

func newSession(id string, now time.Time, opts []selection.Option) *Session {
	return &Session{
		ID:      id,
		Created: now,
		updated: now,
		store:   selection.New(opts...),
	}
}

// Update runs fn with exclusive access. The update time advances only when
// fn succeeds.
func (s *Session) Update(fn func(store *selection.Store, filters *filter.List) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(s.store, &s.filters); err != nil {
		return err
	}
	s.updated = time.Now()
	return nil
}

// View runs fn with shared access. fn must not retain its arguments.
func (s *Session) View(fn func(store *selection.Store, filters *filter.List)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.store, &s.filters)
}

// Updated returns the time of the last successful update.
func (s *Session) Updated() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updated
}

// Snapshot copies the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		ID:        s.ID,
		Created:   s.Created,
		Updated:   s.updated,
		Selection: s.store.Snapshot(),
		Filters:   s.filters.Filters(),
	}
}

func (s *Session) restore(snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.filters.Replace(snap.Filters); err != nil {
		return err
	}
	s.store.Restore(snap.Selection)
	if !snap.Updated.IsZero() {
		s.updated = snap.Updated
	}
	return nil
}
