package repository

import (
	"github.com/okian/upsetlens/internal/domain/selection"
	"github.com/okian/upsetlens/pkg/logger"
)

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithCapacity bounds the number of live sessions. Creating a session when
// full evicts the oldest one.
func WithCapacity(n int) Option {
	return func(s *MemoryStore) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithSelectionOptions sets the options every new session store is built with.
func WithSelectionOptions(opts ...selection.Option) Option {
	return func(s *MemoryStore) {
		s.selectionOpts = append(s.selectionOpts, opts...)
	}
}

// WithEvictHook registers fn to be called with the id of each evicted session.
func WithEvictHook(fn func(id string)) Option {
	return func(s *MemoryStore) {
		if fn != nil {
			s.onEvict = fn
		}
	}
}

// WithLogger sets a custom logger for the store.
func WithLogger(l logger.Logger) Option {
	return func(s *MemoryStore) {
		if l != nil {
			s.logger = l
		}
	}
}
