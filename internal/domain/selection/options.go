package selection

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithMinStep sets the narrowest bin width derived for a publication.
func WithMinStep(step float64) Option {
	return func(s *Store) {
		if step > 0 {
			s.minStep = step
		}
	}
}

// WithUnscoredSentinel sets the score unscored ranking rows are matched at
// when they are visible.
func WithUnscoredSentinel(score float64) Option {
	return func(s *Store) {
		s.sentinel = score
	}
}
