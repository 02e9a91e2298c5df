package upset

import "errors"

var (
	// ErrTooManyGroups is returned when more groups are active than the
	// subset walk is allowed to enumerate.
	ErrTooManyGroups = errors.New("too many groups for intersection")
	// ErrUnknownMode is returned when parsing an unrecognised mode.
	ErrUnknownMode = errors.New("unknown intersection mode")
)
