package filter

import "errors"

var (
	// ErrUnknownKind is returned for a filter type outside the declared kinds.
	ErrUnknownKind = errors.New("unknown filter kind")
	// ErrNotFound is returned when removing an id that is not in the list.
	ErrNotFound = errors.New("filter not found")
)
