package binning

import "errors"

// Sentinel kinds for binning errors.
var (
	ErrInvalidKey = errors.New("invalid bin key")
)
