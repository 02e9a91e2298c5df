// Package config defines service configuration structures and loading hooks.
package config

import (
	"runtime"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr" validate:"required"`

	// MaxGroups caps the groups fed to the intersection engine.
	MaxGroups int `koanf:"max_groups" validate:"min=1,max=30"`

	// MinStep is the smallest bin width of a score histogram.
	MinStep float64 `koanf:"min_step" validate:"gt=0"`

	// UnscoredSentinel is the score plotted for visible unscored ranking rows.
	UnscoredSentinel float64 `koanf:"unscored_sentinel"`

	// DedupeConsolidated removes repeated ids when bins are consolidated per
	// publication. DedupeUnion does the same for the union of filters.
	DedupeConsolidated bool `koanf:"dedupe_consolidated"`
	DedupeUnion        bool `koanf:"dedupe_union"`

	// SessionCapacity bounds live sessions; the oldest is evicted first.
	SessionCapacity int `koanf:"session_capacity" validate:"min=1"`

	// ShardCount sets the number of command workers.
	ShardCount int `koanf:"shard_count" validate:"min=1"`

	// QueueSize bounds each worker's command queue.
	QueueSize int `koanf:"queue_size" validate:"min=1"`

	// DedupeSize bounds the remembered request ids.
	DedupeSize int `koanf:"dedupe_size" validate:"min=1"`

	// SnapshotDir enables on-disk session snapshots when set.
	SnapshotDir string `koanf:"snapshot_dir"`

	// SnapshotInMemory keeps snapshots in an in-memory store. Mostly for tests.
	SnapshotInMemory bool `koanf:"snapshot_in_memory"`

	// CORSOrigins lists browser origins allowed to call the API.
	CORSOrigins []string `koanf:"cors_origins" validate:"min=1"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":9080",
		MaxGroups:        20,
		MinStep:          5,
		UnscoredSentinel: -10,
		SessionCapacity:  1024,
		ShardCount:       runtime.NumCPU(),
		QueueSize:        256,
		DedupeSize:       10_000,
		CORSOrigins:      []string{"*"},
	}
}

// Persistent reports whether sessions are snapshotted.
func (c *Config) Persistent() bool {
	return c.SnapshotDir != "" || c.SnapshotInMemory
}
