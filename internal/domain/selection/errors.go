package selection

import "errors"

// Sentinel kinds for selection errors.
var (
	// ErrCacheMiss means a selection referenced a (year, publication) whose
	// reviews or rankings were never added.
	ErrCacheMiss = errors.New("selection: rows not cached")
	// ErrMixedPublications means a batch of rows named more than one publication.
	ErrMixedPublications = errors.New("selection: rows span more than one publication")
	// ErrInvalidBin means a bin's bounds are not ordered.
	ErrInvalidBin = errors.New("selection: invalid bin bounds")
)
