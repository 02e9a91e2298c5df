package service

import (
	"github.com/okian/upsetlens/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithSessionCapacity bounds the number of live sessions.
func WithSessionCapacity(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.sessionCapacity = n
		}
	}
}

// WithShardCount sets the number of command shards.
func WithShardCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.shardCount = n
		}
	}
}

// WithQueueSize sets the capacity of each shard queue.
func WithQueueSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// WithDedupeSize sets how many request ids are remembered.
func WithDedupeSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.dedupeSize = n
		}
	}
}

// WithMaxGroups caps the number of groups combined into intersections.
func WithMaxGroups(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxGroups = n
		}
	}
}

// WithMinStep sets the narrowest histogram bin width.
func WithMinStep(step float64) Option {
	return func(s *Service) {
		if step > 0 {
			s.minStep = step
		}
	}
}

// WithUnscoredSentinel sets the score unscored ranking rows are drawn at.
func WithUnscoredSentinel(score float64) Option {
	return func(s *Service) {
		s.sentinel = score
	}
}

// WithConsolidatedDedupe makes consolidated groups keep each album once.
func WithConsolidatedDedupe(on bool) Option {
	return func(s *Service) {
		s.dedupeConsolidated = on
	}
}

// WithUnionDedupe makes filter resolution keep each album once.
func WithUnionDedupe(on bool) Option {
	return func(s *Service) {
		s.dedupeUnion = on
	}
}

// WithSnapshotStore persists sessions after every change and restores them
// on Start.
func WithSnapshotStore(store SnapshotStore) Option {
	return func(s *Service) {
		s.snapshots = store
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
