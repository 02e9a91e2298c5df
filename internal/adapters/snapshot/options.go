package snapshot

import "github.com/okian/upsetlens/pkg/logger"

// Option applies a configuration option to the BadgerStore.
type Option func(*options)

type options struct {
	dir        string
	inMemory   bool
	syncWrites bool
	logger     logger.Logger
}

// WithDir sets the database directory.
func WithDir(dir string) Option {
	return func(o *options) {
		o.dir = dir
	}
}

// WithInMemory keeps the database in memory only.
func WithInMemory(on bool) Option {
	return func(o *options) {
		o.inMemory = on
	}
}

// WithSyncWrites makes every write durable before returning.
func WithSyncWrites(on bool) Option {
	return func(o *options) {
		o.syncWrites = on
	}
}

// WithLogger routes badger's own logging through l.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
