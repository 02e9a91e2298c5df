package upset

// DefaultMaxGroups bounds the number of groups combined at once. The walk
// visits 2^n-1 subsets.
const DefaultMaxGroups = 20

type config struct {
	maxGroups int
}

// Option applies a configuration option to Compute.
type Option func(*config)

// WithMaxGroups sets the group cap. Values below 1 are ignored.
func WithMaxGroups(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxGroups = n
		}
	}
}
