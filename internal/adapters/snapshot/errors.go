package snapshot

import "errors"

// Sentinel kinds for snapshot errors.
var (
	ErrNotFound = errors.New("snapshot not found")
	ErrNoPath   = errors.New("snapshot directory required unless in-memory")
)
