// Package repository keeps dashboard sessions in memory.
package repository

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/upsetlens/internal/domain/selection"
	"github.com/okian/upsetlens/pkg/logger"
	"github.com/okian/upsetlens/pkg/metrics"
)

const defaultCapacity = 1024

// Store provides access to live sessions.
type Store interface {
	// Create starts an empty session with a fresh id.
	Create(ctx context.Context) (*Session, error)
	// Get returns the session with id or ErrNotFound.
	Get(ctx context.Context, id string) (*Session, error)
	// Put installs a session from a snapshot, replacing any live session
	// with the same id.
	Put(ctx context.Context, snap Snapshot) (*Session, error)
	// Delete removes the session. Deleting an unknown id returns ErrNotFound.
	Delete(ctx context.Context, id string) error
	// IDs lists live session ids, oldest first.
	IDs(ctx context.Context) []string
	// Count returns the number of live sessions.
	Count(ctx context.Context) int
}

// MemoryStore is a bounded in-memory Store. When full, the session created
// earliest is evicted.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	order    []string

	capacity      int
	selectionOpts []selection.Option
	onEvict       func(id string)
	logger        logger.Logger
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		sessions: make(map[string]*Session),
		capacity: defaultCapacity,
		onEvict:  func(string) {},
		logger:   logger.Get().Named("repository"),
	}
	for _, opt := range opts {
		opt(s)
	}
	metrics.UpdateSessionsActive(0)
	return s
}

// Create implements Store.
func (s *MemoryStore) Create(ctx context.Context) (*Session, error) {
	sess := newSession(uuid.NewString(), time.Now(), s.selectionOpts)
	s.insert(ctx, sess)
	return sess, nil
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidID
	}
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return nil, ErrNotFound
	}
	return sess, nil
}

// Put implements Store.
func (s *MemoryStore) Put(ctx context.Context, snap Snapshot) (*Session, error) {
	if _, err := uuid.Parse(snap.ID); err != nil {
		return nil, ErrInvalidID
	}
	created := snap.Created
	if created.IsZero() {
		created = time.Now()
	}
	sess := newSession(snap.ID, created, s.selectionOpts)
	if err := sess.restore(snap); err != nil {
		return nil, fmt.Errorf("restore session %s: %w", snap.ID, err)
	}

	s.mu.Lock()
	if _, ok := s.sessions[snap.ID]; ok {
		s.removeLocked(snap.ID)
	}
	s.mu.Unlock()
	s.insert(ctx, sess)
	return sess, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrNotFound
	}
	s.removeLocked(id)
	metrics.UpdateSessionsActive(len(s.sessions))
	return nil
}

// IDs implements Store.
func (s *MemoryStore) IDs(ctx context.Context) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.order)
}

// Count implements Store.
func (s *MemoryStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *MemoryStore) insert(ctx context.Context, sess *Session) {
	var evicted []string
	s.mu.Lock()
	for len(s.sessions) >= s.capacity && len(s.order) > 0 {
		oldest := s.order[0]
		s.removeLocked(oldest)
		evicted = append(evicted, oldest)
	}
	s.sessions[sess.ID] = sess
	s.order = append(s.order, sess.ID)
	n := len(s.sessions)
	s.mu.Unlock()

	metrics.UpdateSessionsActive(n)
	for _, id := range evicted {
		metrics.RecordSessionEvicted()
		s.logger.Info(ctx, "session evicted", logger.String("session_id", id), logger.Int("capacity", s.capacity))
		s.onEvict(id)
	}
}

func (s *MemoryStore) removeLocked(id string) {
	delete(s.sessions, id)
	if i := slices.Index(s.order, id); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}
}
